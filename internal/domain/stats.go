package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement es el registro persistido de la liquidación de un poll.
type Settlement struct {
	PollID        string
	Result        Side
	Total         decimal.Decimal
	Fee           decimal.Decimal
	Distributable decimal.Decimal
	PaidOut       decimal.Decimal
	Winners       int
	Losers        int
	Refunded      bool
	SettledAt     time.Time
}

// PlatformStats son las métricas agregadas de la plataforma.
type PlatformStats struct {
	TotalValueLocked  decimal.Decimal // stakes en polls no liquidados
	ActivePredictions int             // polls aceptando stakes
	CommunityMembers  int             // usuarios distintos con saldo, stake o voto
	TotalPayouts      decimal.Decimal // acreditado a ganadores
	TotalFees         decimal.Decimal
	TotalVoterRewards decimal.Decimal
}
