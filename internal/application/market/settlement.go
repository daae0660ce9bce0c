package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/google/uuid"
)

// SettlePoll liquida todos los stakes de un poll final contra el snapshot
// final del pool. Se ejecuta una sola vez: una segunda llamada devuelve un
// ConsistencyError que envuelve domain.ErrAlreadySettled y no acredita nada.
func (s *Service) SettlePoll(ctx context.Context, pollID string, result domain.Side) (domain.Settlement, error) {
	unlock := s.polls.Lock(pollID)
	defer unlock()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market.SettlePoll: %w", err)
	}
	return s.settleLocked(ctx, poll, result)
}

// settleLocked asume el lock del poll tomado.
func (s *Service) settleLocked(ctx context.Context, poll domain.Poll, result domain.Side) (domain.Settlement, error) {
	if poll.IsSettled() {
		return domain.Settlement{}, &domain.ConsistencyError{Op: "SettlePoll", Reason: "poll already settled", Err: domain.ErrAlreadySettled}
	}
	if poll.Status != domain.PollFinal {
		return domain.Settlement{}, &domain.ConsistencyError{Op: "SettlePoll", Reason: "poll is " + string(poll.Status) + ", not final"}
	}
	if !result.Valid() || result != poll.Result {
		return domain.Settlement{}, &domain.ConsistencyError{Op: "SettlePoll", Reason: "result " + string(result) + " does not match poll result " + string(poll.Result)}
	}

	stakes, err := s.store.ListStakesByPoll(ctx, poll.ID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market.SettlePoll: %w", err)
	}
	total := poll.Pool.Snapshot().Total()
	alloc := domain.AllocatePayouts(total, result, stakes, s.cfg.FeeRate)

	// Un único envío para todo el lote: si la red lo rechaza no se liquida nada
	// y el próximo Advance lo reintenta.
	batch, err := s.chain.Submit(ctx, domain.TxRequest{
		Kind:        domain.TxClaimWinnings,
		UserID:      "platform",
		Amount:      alloc.PaidOut(),
		Description: "Settlement of poll " + poll.ID,
	})
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market.SettlePoll: %w", err)
	}

	now := s.clock.Now()
	st := domain.Settlement{
		PollID:        poll.ID,
		Result:        result,
		Total:         alloc.Total,
		Fee:           alloc.Fee,
		Distributable: alloc.Distributable,
		PaidOut:       alloc.PaidOut(),
		Winners:       alloc.Winners,
		Losers:        alloc.Losers,
		Refunded:      alloc.Refunded,
		SettledAt:     now,
	}
	err = s.store.SaveSettlement(ctx, st, alloc.Payouts)
	if errors.Is(err, domain.ErrAlreadySettled) {
		return domain.Settlement{}, &domain.ConsistencyError{Op: "SettlePoll", Reason: "poll already settled", Err: err}
	}
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("market.SettlePoll: %w", err)
	}

	for _, p := range alloc.Payouts {
		if !p.Net.IsPositive() {
			continue
		}
		receipt := batch
		receipt.ID = uuid.NewString()
		receipt.UserID = p.UserID
		receipt.Amount = p.Net
		receipt.Description = fmt.Sprintf("Claimed $%s (%s)", p.Net.StringFixed(domain.MoneyPlaces), p.Status)
		s.saveTx(ctx, receipt)
	}

	slog.Info("poll settled",
		"poll_id", poll.ID,
		"result", result,
		"total", st.Total,
		"fee", st.Fee,
		"paid_out", st.PaidOut,
		"winners", st.Winners,
		"losers", st.Losers,
		"refunded", st.Refunded,
	)
	return st, nil
}
