package domain

import "github.com/shopspring/decimal"

// Pool es el agregado de stakes de los dos lados de un poll.
// Los totales solo crecen: los stakes son finales, no hay retiros.
type Pool struct {
	YesTotal        decimal.Decimal
	NoTotal         decimal.Decimal
	YesParticipants int // cuenta stakes, no usuarios únicos
	NoParticipants  int
}

// Deposit suma amount al lado elegido e incrementa su contador.
// Validar que el poll sigue activo es responsabilidad del caller.
func (p *Pool) Deposit(side Side, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Invalid("amount", "must be positive")
	}
	switch side {
	case SideYes:
		p.YesTotal = p.YesTotal.Add(amount)
		p.YesParticipants++
	case SideNo:
		p.NoTotal = p.NoTotal.Add(amount)
		p.NoParticipants++
	default:
		return Invalid("side", "must be yes or no")
	}
	return nil
}

// Snapshot devuelve los totales actuales, solo lectura.
func (p Pool) Snapshot() PoolSnapshot {
	return PoolSnapshot{Yes: p.YesTotal, No: p.NoTotal}
}

// Participants devuelve el número total de stakes en el pool.
func (p Pool) Participants() int {
	return p.YesParticipants + p.NoParticipants
}

// PoolSnapshot es una foto inmutable de los totales de un pool.
type PoolSnapshot struct {
	Yes decimal.Decimal
	No  decimal.Decimal
}

// Total devuelve yes + no.
func (s PoolSnapshot) Total() decimal.Decimal {
	return s.Yes.Add(s.No)
}

// Side devuelve el total del lado dado.
func (s PoolSnapshot) Side(side Side) decimal.Decimal {
	if side == SideYes {
		return s.Yes
	}
	return s.No
}

// Percentages devuelve el reparto yes/no en enteros 0-100.
// Un pool vacío se muestra 50/50.
func (s PoolSnapshot) Percentages() (yes, no int) {
	total := s.Total()
	if !total.IsPositive() {
		return 50, 50
	}
	yes = int(s.Yes.Mul(hundred).Div(total).Round(0).IntPart())
	no = int(s.No.Mul(hundred).Div(total).Round(0).IntPart())
	return yes, no
}
