package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewPoll son los datos para crear un poll.
type NewPoll struct {
	MatchID        string
	Question       string
	Category       domain.PollCategory
	CreatedBy      string
	LockTime       time.Time
	EligibleVoters int // 0 = Config.DefaultEligibleVoters
}

// Receipt es el resultado de un stake aceptado.
type Receipt struct {
	Stake   domain.Stake
	Pool    domain.Pool     // pool tras el depósito
	Preview domain.Winnings // proyección al momento del stake, redondeada
	Tx      domain.Transaction
}

// CreatePoll valida y crea un poll activo con pool vacío.
func (s *Service) CreatePoll(ctx context.Context, in NewPoll) (domain.Poll, error) {
	if err := domain.ValidateQuestion(in.Question); err != nil {
		return domain.Poll{}, err
	}
	if in.Category == "" {
		in.Category = domain.CategoryOther
	}
	if !in.Category.Valid() {
		return domain.Poll{}, domain.Invalid("category", "unknown category")
	}
	now := s.clock.Now()
	if !in.LockTime.After(now) {
		return domain.Poll{}, domain.Invalid("lock_time", "must be in the future")
	}
	if in.EligibleVoters < 0 {
		return domain.Poll{}, domain.Invalid("eligible_voters", "must not be negative")
	}
	if in.EligibleVoters == 0 {
		in.EligibleVoters = s.cfg.DefaultEligibleVoters
	}

	tx, err := s.chain.Submit(ctx, domain.TxRequest{
		Kind:        domain.TxCreatePoll,
		UserID:      in.CreatedBy,
		Amount:      decimal.Zero,
		Description: "Created poll: " + strings.TrimSpace(in.Question),
	})
	if err != nil {
		return domain.Poll{}, fmt.Errorf("market.CreatePoll: %w", err)
	}

	poll := domain.Poll{
		ID:             uuid.NewString(),
		MatchID:        in.MatchID,
		Question:       strings.TrimSpace(in.Question),
		Category:       in.Category,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		LockTime:       in.LockTime.UTC(),
		Status:         domain.PollActive,
		Pool:           domain.Pool{YesTotal: decimal.Zero, NoTotal: decimal.Zero},
		EligibleVoters: in.EligibleVoters,
	}
	if err := s.store.CreatePoll(ctx, poll); err != nil {
		return domain.Poll{}, fmt.Errorf("market.CreatePoll: %w", err)
	}
	s.saveTx(ctx, tx)

	slog.Info("poll created",
		"poll_id", poll.ID,
		"match_id", poll.MatchID,
		"category", poll.Category,
		"lock_time", poll.LockTime,
	)
	return poll, nil
}

// PreviewStake proyecta las ganancias de un stake hipotético sobre el pool
// actual. El stake todavía no está en el pool; la proyección lo suma.
func (s *Service) PreviewStake(ctx context.Context, pollID string, side domain.Side, amount decimal.Decimal) (domain.Winnings, error) {
	if !side.Valid() {
		return domain.Winnings{}, domain.Invalid("side", "must be yes or no")
	}
	if amount.IsNegative() {
		return domain.Winnings{}, domain.Invalid("amount", "must not be negative")
	}
	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return domain.Winnings{}, fmt.Errorf("market.PreviewStake: %w", err)
	}
	snap := poll.Pool.Snapshot()
	return domain.ComputeWinnings(amount, side, snap.Yes, snap.No, s.cfg.FeeRate).Rounded(), nil
}

// PlaceStake valida, envía la transacción y registra el stake.
//
// Orden de validación: estado del poll, lock time, mínimo, saldo, exclusividad.
// Cualquier fallo (validación o transacción rechazada) deja saldo, pool y
// stakes exactamente como estaban.
func (s *Service) PlaceStake(ctx context.Context, pollID, userID string, side domain.Side, amount decimal.Decimal) (Receipt, error) {
	if userID == "" {
		return Receipt{}, domain.Invalid("user", "required")
	}
	if !side.Valid() {
		return Receipt{}, domain.Invalid("side", "must be yes or no")
	}
	if err := validateAmount(amount); err != nil {
		return Receipt{}, err
	}

	unlockPoll := s.polls.Lock(pollID)
	defer unlockPoll()
	unlockUser := s.users.Lock(userID)
	defer unlockUser()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return Receipt{}, fmt.Errorf("market.PlaceStake: %w", err)
	}
	if poll.Status != domain.PollActive {
		return Receipt{}, domain.InvalidErr("status", "poll is "+string(poll.Status), domain.ErrPoolFrozen)
	}
	now := s.clock.Now()
	if !now.Before(poll.LockTime) {
		return Receipt{}, domain.InvalidErr("lock_time", "staking closed at lock time", domain.ErrPoolFrozen)
	}
	if amount.LessThan(s.cfg.MinStake) {
		return Receipt{}, domain.Invalid("amount", "below minimum stake of "+s.cfg.MinStake.String())
	}
	bal, err := s.store.Balance(ctx, userID)
	if err != nil {
		return Receipt{}, fmt.Errorf("market.PlaceStake: %w", err)
	}
	if amount.GreaterThan(bal) {
		return Receipt{}, domain.InvalidErr("amount", "exceeds balance", domain.ErrInsufficientBalance)
	}
	if s.cfg.ExclusiveSide {
		if err := s.checkExclusive(ctx, pollID, userID, side); err != nil {
			return Receipt{}, err
		}
	}

	snap := poll.Pool.Snapshot()
	preview := domain.ComputeWinnings(amount, side, snap.Yes, snap.No, s.cfg.FeeRate).Rounded()

	tx, err := s.chain.Submit(ctx, domain.TxRequest{
		Kind:        domain.TxStake,
		UserID:      userID,
		Amount:      amount,
		Description: fmt.Sprintf("Staked $%s on %s", amount.StringFixed(domain.MoneyPlaces), strings.ToUpper(string(side))),
	})
	if err != nil {
		slog.Warn("stake transaction failed", "poll_id", pollID, "user_id", userID, "amount", amount, "err", err)
		return Receipt{}, fmt.Errorf("market.PlaceStake: %w", err)
	}

	stake := domain.Stake{
		ID:                uuid.NewString(),
		PollID:            pollID,
		UserID:            userID,
		Side:              side,
		Amount:            amount,
		PlacedAt:          now,
		Status:            domain.StakeActive,
		PotentialWinnings: preview.Gross,
		TxHash:            tx.Hash,
		Payout:            decimal.Zero,
		Profit:            decimal.Zero,
		ROI:               decimal.Zero,
	}
	pool, err := s.store.RecordStake(ctx, stake)
	switch {
	case errors.Is(err, domain.ErrInsufficientBalance):
		return Receipt{}, domain.InvalidErr("amount", "exceeds balance", err)
	case errors.Is(err, domain.ErrPoolFrozen):
		return Receipt{}, domain.InvalidErr("status", "poll no longer accepts stakes", err)
	case err != nil:
		return Receipt{}, fmt.Errorf("market.PlaceStake: %w", err)
	}
	s.saveTx(ctx, tx)

	slog.Info("stake placed",
		"poll_id", pollID,
		"user_id", userID,
		"side", side,
		"amount", amount,
		"potential", preview.Gross,
		"yes_total", pool.YesTotal,
		"no_total", pool.NoTotal,
	)
	return Receipt{Stake: stake, Pool: pool, Preview: preview, Tx: tx}, nil
}

// checkExclusive rechaza un stake al lado opuesto de uno ya existente.
func (s *Service) checkExclusive(ctx context.Context, pollID, userID string, side domain.Side) error {
	stakes, err := s.store.ListStakesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("market.PlaceStake: %w", err)
	}
	for _, st := range stakes {
		if st.PollID == pollID && st.Side != side {
			return domain.Invalid("side", "already staked on "+string(st.Side))
		}
	}
	return nil
}
