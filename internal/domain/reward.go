package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	VoterRewardMin = decimal.NewFromFloat(0.005) // 0.5% del pool
	VoterRewardMax = decimal.NewFromFloat(0.01)  // 1% del pool
)

// VoterRewardRate interpola linealmente entre Max (participación 0) y Min
// (participación 1). Más participación → tasa menor, así el total pagado
// queda acotado; poca participación → tasa mayor para incentivar el voto.
func VoterRewardRate(participation decimal.Decimal) decimal.Decimal {
	p := decimal.Max(decimal.Zero, decimal.Min(participation, decimal.NewFromInt(1)))
	return VoterRewardMax.Sub(VoterRewardMax.Sub(VoterRewardMin).Mul(p))
}

// VoterReward calcula el reward inmediato de un voto yes/no.
//
//	participation = voters / eligible   (voters: todos los votos, incluido este)
//	reward        = floor(totalPool × rate(participation) / eligible)
//
// Con a lo sumo eligible votos pagados, la suma nunca supera
// totalPool × VoterRewardMax. El piso del presupuesto se completa al cerrar
// la votación con TopUpVoterRewards. Devuelve 0 si no hay elegibles.
func VoterReward(totalPool decimal.Decimal, voters, eligible int) decimal.Decimal {
	if eligible <= 0 || voters <= 0 || !totalPool.IsPositive() {
		return decimal.Zero
	}
	participation := decimal.NewFromInt(int64(voters)).Div(decimal.NewFromInt(int64(eligible)))
	budget := totalPool.Mul(VoterRewardRate(participation))
	return FloorMoney(budget.Div(decimal.NewFromInt(int64(eligible))))
}

// VoterRewardBudget es lo que reciben en total los votantes de un poll:
// floor(totalPool × rate(voters/eligible)), siempre dentro de
// [VoterRewardMin, VoterRewardMax] del pool.
func VoterRewardBudget(totalPool decimal.Decimal, voters, eligible int) decimal.Decimal {
	if eligible <= 0 || voters <= 0 || !totalPool.IsPositive() {
		return decimal.Zero
	}
	participation := decimal.NewFromInt(int64(voters)).Div(decimal.NewFromInt(int64(eligible)))
	return FloorMoney(totalPool.Mul(VoterRewardRate(participation)))
}

// TopUpVoterRewards reparte entre los votos yes/no lo que falta para llegar
// a budget: partes iguales en centavos, los centavos sobrantes a los primeros
// votantes (votes en orden de emisión). Sin faltante o sin votos que cuenten
// devuelve nil.
func TopUpVoterRewards(pollID string, budget decimal.Decimal, votes []Vote, at time.Time) []VoterBonus {
	paid := decimal.Zero
	var counting []Vote
	for _, v := range votes {
		paid = paid.Add(v.Reward)
		if v.Choice.Counts() {
			counting = append(counting, v)
		}
	}
	missing := FloorMoney(budget.Sub(paid))
	if len(counting) == 0 || !missing.IsPositive() {
		return nil
	}

	cents := missing.Div(Cent).IntPart()
	k := int64(len(counting))
	base, extra := cents/k, cents%k

	var out []VoterBonus
	for i, v := range counting {
		n := base
		if int64(i) < extra {
			n++
		}
		if n == 0 {
			continue
		}
		out = append(out, VoterBonus{
			PollID:     pollID,
			VoterID:    v.VoterID,
			Amount:     Cent.Mul(decimal.NewFromInt(n)),
			CreditedAt: at,
		})
	}
	return out
}
