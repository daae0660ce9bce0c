package domain

import "github.com/shopspring/decimal"

// DefaultFeeRate es el fee de plataforma sobre las ganancias brutas (5%).
var DefaultFeeRate = decimal.NewFromFloat(0.05)

// Winnings es el desglose de lo que cobraría un stake si su lado gana.
type Winnings struct {
	Gross  decimal.Decimal // cuota proporcional de TODO el pool
	Fee    decimal.Decimal // Gross × feeRate
	Net    decimal.Decimal // Gross - Fee
	Profit decimal.Decimal // Net - stake
	ROI    decimal.Decimal // Profit / stake × 100
	// ROIDefined es false con stake 0: el ROI no existe, no es 0%.
	ROIDefined bool
}

// ComputeWinnings proyecta las ganancias de un stake que TODAVÍA no entró al pool.
// yesPool y noPool son los totales antes del stake; la función suma el stake a
// su lado y al total, así que el caller nunca debe sumarlo antes.
//
//	winningSide = pool[side] + stake
//	total       = yesPool + noPool + stake
//	gross       = stake / winningSide × total
//
// El primer staker de un lado vacío se lleva el pool entero (menos fee) si gana.
func ComputeWinnings(stake decimal.Decimal, side Side, yesPool, noPool, feeRate decimal.Decimal) Winnings {
	if !stake.IsPositive() {
		return Winnings{}
	}
	sidePool := yesPool
	if side == SideNo {
		sidePool = noPool
	}
	winningSide := sidePool.Add(stake)
	total := yesPool.Add(noPool).Add(stake)
	return breakdown(stake, winningSide, total, feeRate)
}

// ComputeSettledWinnings calcula las ganancias de un stake que YA está incluido
// en yesPool/noPool (convención de liquidación y del ejemplo documentado:
// pools 7000/3000, stake 700 en yes → payout 950, profit 250).
func ComputeSettledWinnings(stake decimal.Decimal, side Side, yesPool, noPool, feeRate decimal.Decimal) Winnings {
	if !stake.IsPositive() {
		return Winnings{}
	}
	sidePool := yesPool
	if side == SideNo {
		sidePool = noPool
	}
	if sidePool.LessThan(stake) {
		// el stake no puede ser mayor que su propio lado: snapshot inconsistente
		return Winnings{}
	}
	return breakdown(stake, sidePool, yesPool.Add(noPool), feeRate)
}

// breakdown aplica gross → fee → net → profit → roi.
// Multiplica antes de dividir para no perder precisión con cuotas periódicas (1/3).
func breakdown(stake, winningSide, total, feeRate decimal.Decimal) Winnings {
	gross := stake.Mul(total).Div(winningSide)
	fee := gross.Mul(feeRate)
	net := gross.Sub(fee)
	profit := net.Sub(stake)
	return Winnings{
		Gross:      gross,
		Fee:        fee,
		Net:        net,
		Profit:     profit,
		ROI:        profit.Div(stake).Mul(hundred),
		ROIDefined: true,
	}
}

// Rounded devuelve el desglose redondeado a centavos, para mostrar.
func (w Winnings) Rounded() Winnings {
	return Winnings{
		Gross:      RoundMoney(w.Gross),
		Fee:        RoundMoney(w.Fee),
		Net:        RoundMoney(w.Net),
		Profit:     RoundMoney(w.Profit),
		ROI:        w.ROI.Round(2),
		ROIDefined: w.ROIDefined,
	}
}
