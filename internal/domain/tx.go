package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxKind es el tipo de acción de plataforma que representa una transacción.
type TxKind string

const (
	TxStake         TxKind = "stake"
	TxClaimWinnings TxKind = "claim-winnings"
	TxVoteReward    TxKind = "vote-reward"
	TxCreatePoll    TxKind = "create-poll"
)

// TxStatus es el estado de confirmación de una transacción.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TxRequest es lo que se envía a la red.
type TxRequest struct {
	Kind        TxKind
	UserID      string
	Amount      decimal.Decimal
	Description string
}

// Transaction es una transacción ya enviada.
type Transaction struct {
	ID          string
	Hash        string // 64 hex
	Kind        TxKind
	UserID      string
	Amount      decimal.Decimal
	Fee         decimal.Decimal // fee de red, no de plataforma
	Status      TxStatus
	Ledger      int64 // 0 mientras está pendiente
	Description string
	SubmittedAt time.Time
}
