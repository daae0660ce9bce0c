package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StakeStatus es el ciclo de vida de un stake.
type StakeStatus string

const (
	StakeActive            StakeStatus = "active"
	StakePendingResolution StakeStatus = "pending_resolution"
	StakeWon               StakeStatus = "won"
	StakeLost              StakeStatus = "lost"
	StakeRefunded          StakeStatus = "refunded" // nadie apostó al lado ganador
)

// Completed devuelve true si el stake ya está liquidado.
func (s StakeStatus) Completed() bool {
	return s == StakeWon || s == StakeLost || s == StakeRefunded
}

// Stake es el depósito de un usuario en un lado de un poll.
// Side y Amount no cambian después de crearse.
type Stake struct {
	ID                string
	PollID            string
	UserID            string
	Side              Side
	Amount            decimal.Decimal
	PlacedAt          time.Time
	Status            StakeStatus
	PotentialWinnings decimal.Decimal // gross estimado al momento del stake
	TxHash            string

	// Se completan al liquidar.
	Payout     decimal.Decimal
	Profit     decimal.Decimal
	ROI        decimal.Decimal
	ROIDefined bool
	SettledAt  *time.Time
}

// UserStakes agrupa los stakes de un usuario como los muestra el dashboard.
type UserStakes struct {
	Active    []Stake
	Pending   []Stake
	Completed []Stake
}

// GroupStakes reparte stakes en active / pending / completed.
func GroupStakes(stakes []Stake) UserStakes {
	var out UserStakes
	for _, s := range stakes {
		switch {
		case s.Status == StakeActive:
			out.Active = append(out.Active, s)
		case s.Status == StakePendingResolution:
			out.Pending = append(out.Pending, s)
		case s.Status.Completed():
			out.Completed = append(out.Completed, s)
		}
	}
	return out
}
