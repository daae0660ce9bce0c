package market

// advance.go: transiciones por tiempo, con worker pool por poll.
//
// Cada poll es independiente: se procesan en paralelo y cada worker toma el
// lock del poll que avanza, así Advance convive con stakes y votos en curso.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/predictx/internal/domain"
)

// AdvanceReport resume un ciclo de Advance.
type AdvanceReport struct {
	Locked    int
	Voting    int
	Routed    int
	Finalized int
	Settled   int
	Failed    int
}

type step int

const (
	stepNone step = iota
	stepLocked
	stepVoting
	stepRouted
	stepFinalized
	stepSettled
	stepFailed
)

// pendingStatuses son los estados con alguna transición temporal posible.
var pendingStatuses = []domain.PollStatus{
	domain.PollActive,
	domain.PollLocked,
	domain.PollVoting,
	domain.PollResolved,
	domain.PollFinal,
}

// Advance aplica todas las transiciones vencidas según el reloj:
//
//	active   → locked     al llegar lockTime (stakes → pending_resolution)
//	locked   → voting     abre la ventana de 2h
//	voting   → router     al cerrar la ventana
//	resolved → final      al cerrar la ventana de disputa
//	final    → liquidado  si todavía no se liquidó
func (s *Service) Advance(ctx context.Context) (AdvanceReport, error) {
	polls, err := s.store.ListPolls(ctx, pendingStatuses...)
	if err != nil {
		return AdvanceReport{}, fmt.Errorf("market.Advance: %w", err)
	}

	workers := s.cfg.AdvanceWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workCh := make(chan string, len(polls))
	resultCh := make(chan []step, len(polls))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range workCh {
				steps, err := s.advancePoll(ctx, id)
				if err != nil {
					slog.Warn("advance failed", "poll_id", id, "err", err)
					steps = append(steps, stepFailed)
				}
				resultCh <- steps
			}
		}()
	}

	for _, p := range polls {
		if p.Status == domain.PollFinal && p.IsSettled() {
			continue
		}
		workCh <- p.ID
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var report AdvanceReport
	for steps := range resultCh {
		for _, st := range steps {
			switch st {
			case stepLocked:
				report.Locked++
			case stepVoting:
				report.Voting++
			case stepRouted:
				report.Routed++
			case stepFinalized:
				report.Finalized++
			case stepSettled:
				report.Settled++
			case stepFailed:
				report.Failed++
			}
		}
	}

	if report != (AdvanceReport{}) {
		slog.Info("advance complete",
			"locked", report.Locked,
			"voting", report.Voting,
			"routed", report.Routed,
			"finalized", report.Finalized,
			"settled", report.Settled,
			"failed", report.Failed,
		)
	}
	return report, nil
}

// advancePoll aplica en cadena las transiciones vencidas de un poll.
// Un error corta la cadena; lo ya aplicado queda persistido.
func (s *Service) advancePoll(ctx context.Context, pollID string) ([]step, error) {
	unlock := s.polls.Lock(pollID)
	defer unlock()

	var steps []step
	for {
		poll, err := s.store.GetPoll(ctx, pollID)
		if err != nil {
			return steps, err
		}
		st, err := s.advanceOnce(ctx, poll)
		if err != nil || st == stepNone {
			return steps, err
		}
		steps = append(steps, st)
	}
}

func (s *Service) advanceOnce(ctx context.Context, poll domain.Poll) (step, error) {
	now := s.clock.Now()

	switch poll.Status {
	case domain.PollActive:
		if now.Before(poll.LockTime) {
			return stepNone, nil
		}
		poll.Status = domain.PollLocked
		if err := s.store.UpdatePoll(ctx, poll); err != nil {
			return stepNone, err
		}
		n, err := s.store.MarkStakesPending(ctx, poll.ID)
		if err != nil {
			return stepNone, err
		}
		slog.Info("poll locked", "poll_id", poll.ID, "stakes", n,
			"yes_total", poll.Pool.YesTotal, "no_total", poll.Pool.NoTotal)
		return stepLocked, nil

	case domain.PollLocked:
		ends := now.Add(domain.VotingWindow)
		poll.Status = domain.PollVoting
		poll.VotingEndsAt = &ends
		if err := s.store.UpdatePoll(ctx, poll); err != nil {
			return stepNone, err
		}
		slog.Info("voting opened", "poll_id", poll.ID, "ends_at", ends)
		return stepVoting, nil

	case domain.PollVoting:
		if poll.VotingEndsAt != nil && now.Before(*poll.VotingEndsAt) {
			return stepNone, nil
		}
		if _, err := s.closeVotingLocked(ctx, poll); err != nil {
			return stepNone, err
		}
		return stepRouted, nil

	case domain.PollResolved:
		if poll.DisputeEndsAt != nil && now.Before(*poll.DisputeEndsAt) {
			return stepNone, nil
		}
		markFinal(&poll, now)
		if err := s.store.UpdatePoll(ctx, poll); err != nil {
			return stepNone, err
		}
		slog.Info("poll final", "poll_id", poll.ID, "result", poll.Result)
		return stepFinalized, nil

	case domain.PollFinal:
		if poll.IsSettled() {
			return stepNone, nil
		}
		if _, err := s.settleLocked(ctx, poll, poll.Result); err != nil {
			return stepNone, err
		}
		return stepSettled, nil
	}
	return stepNone, nil
}
