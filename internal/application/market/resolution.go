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

// CloseVoting toma el recuento de un poll cuya ventana ya cerró y lo enruta.
func (s *Service) CloseVoting(ctx context.Context, pollID string) (domain.Route, error) {
	unlock := s.polls.Lock(pollID)
	defer unlock()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return domain.Route{}, fmt.Errorf("market.CloseVoting: %w", err)
	}
	return s.closeVotingLocked(ctx, poll)
}

// closeVotingLocked asume el lock del poll tomado.
func (s *Service) closeVotingLocked(ctx context.Context, poll domain.Poll) (domain.Route, error) {
	if poll.Status != domain.PollVoting {
		return domain.Route{}, domain.Invalid("status", "poll is "+string(poll.Status)+", not voting")
	}
	now := s.clock.Now()
	if poll.VotingEndsAt != nil && now.Before(*poll.VotingEndsAt) {
		return domain.Route{}, domain.Invalid("voting_ends_at", "voting window still open")
	}

	votes, err := s.store.ListVotes(ctx, poll.ID)
	if err != nil {
		return domain.Route{}, fmt.Errorf("market.CloseVoting: %w", err)
	}
	tally := domain.TallyVotes(votes)
	route := domain.RouteResolution(tally.Yes, tally.No)

	if err := s.topUpVoters(ctx, poll, votes, now); err != nil {
		return domain.Route{}, fmt.Errorf("market.CloseVoting: %w", err)
	}

	if route.Pathway == domain.PollResolved {
		markResolved(&poll, route.Winner, now)
	} else {
		poll.Status = route.Pathway
	}
	if err := s.store.UpdatePoll(ctx, poll); err != nil {
		return domain.Route{}, fmt.Errorf("market.CloseVoting: %w", err)
	}

	slog.Info("voting closed",
		"poll_id", poll.ID,
		"yes", tally.Yes,
		"no", tally.No,
		"unclear", tally.Unclear,
		"share", route.Share.StringFixed(4),
		"pathway", route.Pathway,
	)
	return route, nil
}

// topUpVoters completa los rewards de los votantes hasta el presupuesto del
// poll según la participación final. Si la red rechaza el envío la votación
// sigue abierta y el próximo Advance lo reintenta; repetir no acredita dos veces.
func (s *Service) topUpVoters(ctx context.Context, poll domain.Poll, votes []domain.Vote, now time.Time) error {
	budget := domain.VoterRewardBudget(poll.Pool.Snapshot().Total(), len(votes), s.eligibleVoters(poll))
	bonuses := domain.TopUpVoterRewards(poll.ID, budget, votes, now)
	if len(bonuses) == 0 {
		return nil
	}

	sum := decimal.Zero
	for _, b := range bonuses {
		sum = sum.Add(b.Amount)
	}
	batch, err := s.chain.Submit(ctx, domain.TxRequest{
		Kind:        domain.TxVoteReward,
		UserID:      "platform",
		Amount:      sum,
		Description: "Voting reward top-up for poll " + poll.ID,
	})
	if err != nil {
		return err
	}
	if err := s.store.RecordVoterBonuses(ctx, bonuses); err != nil {
		return err
	}

	for _, b := range bonuses {
		receipt := batch
		receipt.ID = uuid.NewString()
		receipt.UserID = b.VoterID
		receipt.Amount = b.Amount
		receipt.Description = "Voting reward top-up"
		s.saveTx(ctx, receipt)
	}
	slog.Info("voter rewards topped up", "poll_id", poll.ID, "voters", len(bonuses), "amount", sum)
	return nil
}

// ApproveResolution registra la aprobación de un admin sobre un poll en revisión.
// admin-review se resuelve con una aprobación; multi-sig-review con tres admins
// distintos de acuerdo. Una aprobación que contradice a las anteriores se rechaza.
func (s *Service) ApproveResolution(ctx context.Context, pollID, adminID string, result domain.Side) (domain.Poll, error) {
	if adminID == "" {
		return domain.Poll{}, domain.Invalid("admin", "required")
	}
	if !result.Valid() {
		return domain.Poll{}, domain.Invalid("result", "must be yes or no")
	}

	unlock := s.polls.Lock(pollID)
	defer unlock()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return domain.Poll{}, fmt.Errorf("market.ApproveResolution: %w", err)
	}
	if !poll.Status.InReview() {
		return domain.Poll{}, domain.Invalid("status", "poll is "+string(poll.Status)+", not in review")
	}

	approvals, err := s.store.ListApprovals(ctx, pollID)
	if err != nil {
		return domain.Poll{}, fmt.Errorf("market.ApproveResolution: %w", err)
	}
	for _, a := range approvals {
		if a.AdminID == adminID {
			return domain.Poll{}, domain.InvalidErr("admin", "already approved", domain.ErrAlreadyVoted)
		}
		if a.Result != result {
			return domain.Poll{}, domain.Invalid("result", "conflicts with existing approval for "+string(a.Result))
		}
	}

	now := s.clock.Now()
	err = s.store.SaveApproval(ctx, domain.Approval{PollID: pollID, AdminID: adminID, Result: result, ApprovedAt: now})
	if errors.Is(err, domain.ErrAlreadyVoted) {
		return domain.Poll{}, domain.InvalidErr("admin", "already approved", err)
	}
	if err != nil {
		return domain.Poll{}, fmt.Errorf("market.ApproveResolution: %w", err)
	}

	count, required := len(approvals)+1, domain.RequiredApprovals(poll.Status)
	slog.Info("resolution approved",
		"poll_id", pollID,
		"admin_id", adminID,
		"result", result,
		"approvals", count,
		"required", required,
	)
	if count < required {
		return poll, nil
	}

	markResolved(&poll, result, now)
	if err := s.store.UpdatePoll(ctx, poll); err != nil {
		return domain.Poll{}, fmt.Errorf("market.ApproveResolution: %w", err)
	}
	return poll, nil
}

// SubmitDispute impugna un resultado dentro de la ventana de disputa.
func (s *Service) SubmitDispute(ctx context.Context, pollID, userID, reason string) (domain.Dispute, error) {
	if userID == "" {
		return domain.Dispute{}, domain.Invalid("user", "required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Dispute{}, domain.Invalid("reason", "required")
	}

	unlock := s.polls.Lock(pollID)
	defer unlock()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return domain.Dispute{}, fmt.Errorf("market.SubmitDispute: %w", err)
	}
	if poll.Status != domain.PollResolved && poll.Status != domain.PollDispute {
		return domain.Dispute{}, domain.Invalid("status", "poll is "+string(poll.Status)+", not disputable")
	}
	now := s.clock.Now()
	if poll.DisputeEndsAt != nil && !now.Before(*poll.DisputeEndsAt) {
		return domain.Dispute{}, domain.Invalid("dispute_ends_at", "dispute window closed")
	}

	d := domain.Dispute{
		ID:          uuid.NewString(),
		PollID:      pollID,
		UserID:      userID,
		Reason:      reason,
		SubmittedAt: now,
	}
	if err := s.store.SaveDispute(ctx, d); err != nil {
		return domain.Dispute{}, fmt.Errorf("market.SubmitDispute: %w", err)
	}
	if poll.Status != domain.PollDispute {
		poll.Status = domain.PollDispute
		if err := s.store.UpdatePoll(ctx, poll); err != nil {
			return domain.Dispute{}, fmt.Errorf("market.SubmitDispute: %w", err)
		}
	}

	slog.Info("dispute submitted", "poll_id", pollID, "user_id", userID, "result", poll.Result)
	return d, nil
}

// ResolveDispute aplica el fallo de un admin y deja el poll en final con el
// resultado confirmado o revertido.
func (s *Service) ResolveDispute(ctx context.Context, pollID, adminID string, ruling domain.Side) (domain.Poll, error) {
	if adminID == "" {
		return domain.Poll{}, domain.Invalid("admin", "required")
	}
	if !ruling.Valid() {
		return domain.Poll{}, domain.Invalid("ruling", "must be yes or no")
	}

	unlock := s.polls.Lock(pollID)
	defer unlock()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return domain.Poll{}, fmt.Errorf("market.ResolveDispute: %w", err)
	}
	if poll.Status != domain.PollDispute {
		return domain.Poll{}, domain.Invalid("status", "poll is "+string(poll.Status)+", not in dispute")
	}

	now := s.clock.Now()
	if err := s.store.ResolveDisputes(ctx, pollID, adminID, ruling, now); err != nil {
		return domain.Poll{}, fmt.Errorf("market.ResolveDispute: %w", err)
	}

	previous := poll.Result
	poll.Result = ruling
	markFinal(&poll, now)
	if err := s.store.UpdatePoll(ctx, poll); err != nil {
		return domain.Poll{}, fmt.Errorf("market.ResolveDispute: %w", err)
	}

	slog.Info("dispute resolved",
		"poll_id", pollID,
		"admin_id", adminID,
		"ruling", ruling,
		"overturned", previous != ruling,
	)
	return poll, nil
}

func markResolved(p *domain.Poll, result domain.Side, now time.Time) {
	ends := now.Add(domain.DisputeWindow)
	p.Status = domain.PollResolved
	p.Result = result
	p.ResolvedAt = &now
	p.DisputeEndsAt = &ends
}

func markFinal(p *domain.Poll, now time.Time) {
	p.Status = domain.PollFinal
	p.FinalizedAt = &now
}
