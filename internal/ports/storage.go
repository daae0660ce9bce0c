package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/predictx/internal/domain"
)

// PollStore persiste polls y su pool.
type PollStore interface {
	CreatePoll(ctx context.Context, poll domain.Poll) error
	// GetPoll devuelve domain.ErrNotFound si el poll no existe.
	GetPoll(ctx context.Context, id string) (domain.Poll, error)
	// ListPolls devuelve los polls en los estados dados (todos si no se pasa ninguno).
	ListPolls(ctx context.Context, statuses ...domain.PollStatus) ([]domain.Poll, error)
	// UpdatePoll guarda estado, resultado y ventanas. El pool solo cambia vía RecordStake.
	UpdatePoll(ctx context.Context, poll domain.Poll) error
}

// StakeStore persiste stakes.
type StakeStore interface {
	// RecordStake debita el balance del usuario, deposita en el pool e inserta
	// el stake en una sola transacción. Devuelve domain.ErrInsufficientBalance
	// sin tocar nada si el saldo no alcanza, y domain.ErrPoolFrozen si el poll
	// ya no está activo. Devuelve el pool resultante.
	RecordStake(ctx context.Context, stake domain.Stake) (domain.Pool, error)
	GetStake(ctx context.Context, id string) (domain.Stake, error)
	ListStakesByPoll(ctx context.Context, pollID string) ([]domain.Stake, error)
	ListStakesByUser(ctx context.Context, userID string) ([]domain.Stake, error)
	// MarkStakesPending pasa los stakes activos del poll a pending_resolution.
	MarkStakesPending(ctx context.Context, pollID string) (int, error)
}

// VoteStore persiste votos de resolución.
type VoteStore interface {
	// RecordVote inserta el voto y acredita vote.Reward al votante en la misma
	// transacción. Devuelve domain.ErrAlreadyVoted si el par (poll, voter) existe.
	RecordVote(ctx context.Context, vote domain.Vote) error
	// GetVote devuelve domain.ErrNotFound si el voto no existe.
	GetVote(ctx context.Context, id string) (domain.Vote, error)
	ListVotes(ctx context.Context, pollID string) ([]domain.Vote, error)
	// RecordVoterBonuses acredita los complementos de reward en una transacción.
	// Un (poll, votante) que ya tiene complemento se ignora.
	RecordVoterBonuses(ctx context.Context, bonuses []domain.VoterBonus) error
	ListVoterBonuses(ctx context.Context, pollID string) ([]domain.VoterBonus, error)
}

// ResolutionStore persiste aprobaciones de admins y disputas.
type ResolutionStore interface {
	// SaveApproval devuelve domain.ErrAlreadyVoted si el admin ya aprobó este poll.
	SaveApproval(ctx context.Context, a domain.Approval) error
	ListApprovals(ctx context.Context, pollID string) ([]domain.Approval, error)
	SaveDispute(ctx context.Context, d domain.Dispute) error
	ListDisputes(ctx context.Context, pollID string) ([]domain.Dispute, error)
	ResolveDisputes(ctx context.Context, pollID, adminID string, ruling domain.Side, at time.Time) error
}

// SettlementStore persiste liquidaciones.
type SettlementStore interface {
	// SaveSettlement escribe el resultado de cada stake, acredita los Net a los
	// usuarios, guarda el registro y marca el poll como liquidado, todo en una
	// transacción. Devuelve domain.ErrAlreadySettled si el poll ya estaba
	// liquidado; en ese caso no se acredita nada.
	SaveSettlement(ctx context.Context, s domain.Settlement, payouts []domain.Payout) error
	GetSettlement(ctx context.Context, pollID string) (domain.Settlement, error)
	PlatformStats(ctx context.Context) (domain.PlatformStats, error)
}

// TransactionStore guarda el historial de transacciones simuladas.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, tx domain.Transaction) error
	ListTransactions(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// Store agrupa toda la persistencia que necesita el servicio. Los saldos
// viven en el mismo store porque RecordStake, RecordVote y SaveSettlement
// los mueven dentro de sus transacciones.
type Store interface {
	BalanceStore
	PollStore
	StakeStore
	VoteStore
	ResolutionStore
	SettlementStore
	TransactionStore

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
