package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Payout es el resultado de liquidar un stake.
type Payout struct {
	StakeID    string
	UserID     string
	Status     StakeStatus // won | lost | refunded
	Amount     decimal.Decimal
	Net        decimal.Decimal // lo que se acredita al usuario
	Profit     decimal.Decimal
	ROI        decimal.Decimal
	ROIDefined bool
}

// Allocation es el reparto completo de un pool resuelto.
type Allocation struct {
	Result        Side
	Total         decimal.Decimal
	Fee           decimal.Decimal
	Distributable decimal.Decimal // Total - Fee; suma exacta de los Net ganadores
	Winners       int
	Losers        int
	Refunded      bool
	Payouts       []Payout // mismo orden que los stakes de entrada
}

// AllocatePayouts reparte el pool final entre los stakes ganadores.
//
// Política de fee: se cobra UNA vez sobre el pool completo
// (fee = ceil(total × feeRate) a centavos) y el resto se reparte proporcionalmente al
// amount de cada ganador. Cada cuota se trunca a centavos y los centavos
// sobrantes se asignan uno a uno a los mayores restos (empate: orden de
// colocación), así que la suma de los Net ganadores es exactamente
// Total - Fee.
//
// Si nadie apostó al lado ganador se devuelve cada stake íntegro, sin fee.
func AllocatePayouts(total decimal.Decimal, result Side, stakes []Stake, feeRate decimal.Decimal) Allocation {
	alloc := Allocation{
		Result:  result,
		Total:   total,
		Fee:     decimal.Zero,
		Payouts: make([]Payout, len(stakes)),
	}

	winningSum := decimal.Zero
	for _, s := range stakes {
		if s.Side == result {
			winningSum = winningSum.Add(s.Amount)
		}
	}

	if !winningSum.IsPositive() {
		alloc.Refunded = true
		alloc.Distributable = total
		for i, s := range stakes {
			alloc.Payouts[i] = Payout{
				StakeID:    s.ID,
				UserID:     s.UserID,
				Status:     StakeRefunded,
				Amount:     s.Amount,
				Net:        s.Amount,
				Profit:     decimal.Zero,
				ROI:        decimal.Zero,
				ROIDefined: s.Amount.IsPositive(),
			}
		}
		return alloc
	}

	alloc.Fee = total.Mul(feeRate).RoundCeil(MoneyPlaces)
	alloc.Distributable = total.Sub(alloc.Fee)

	type share struct {
		idx       int
		remainder decimal.Decimal
	}
	var shares []share
	allocated := decimal.Zero

	for i, s := range stakes {
		if s.Side != result {
			alloc.Losers++
			alloc.Payouts[i] = Payout{
				StakeID:    s.ID,
				UserID:     s.UserID,
				Status:     StakeLost,
				Amount:     s.Amount,
				Net:        decimal.Zero,
				Profit:     s.Amount.Neg(),
				ROI:        decimal.NewFromInt(-100),
				ROIDefined: true,
			}
			continue
		}
		alloc.Winners++
		raw := s.Amount.Mul(alloc.Distributable).Div(winningSum)
		floor := FloorMoney(raw)
		allocated = allocated.Add(floor)
		shares = append(shares, share{idx: i, remainder: raw.Sub(floor)})
		alloc.Payouts[i] = Payout{
			StakeID: s.ID,
			UserID:  s.UserID,
			Status:  StakeWon,
			Amount:  s.Amount,
			Net:     floor,
		}
	}

	// Centavos que quedaron por el truncado.
	leftover := alloc.Distributable.Sub(allocated).Div(Cent).IntPart()
	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].remainder.GreaterThan(shares[b].remainder)
	})
	for k := int64(0); k < leftover && len(shares) > 0; k++ {
		p := &alloc.Payouts[shares[k%int64(len(shares))].idx]
		p.Net = p.Net.Add(Cent)
	}

	for _, sh := range shares {
		p := &alloc.Payouts[sh.idx]
		p.Profit = p.Net.Sub(p.Amount)
		if p.Amount.IsPositive() {
			p.ROI = p.Profit.Div(p.Amount).Mul(hundred).Round(2)
			p.ROIDefined = true
		}
	}
	return alloc
}

// PaidOut devuelve la suma de lo acreditado a ganadores (o devuelto en refund).
func (a Allocation) PaidOut() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range a.Payouts {
		sum = sum.Add(p.Net)
	}
	return sum
}
