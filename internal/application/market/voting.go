package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CastVote registra el voto de resolución de un miembro de la comunidad y le
// acredita el reward en el acto. Solo se vota con el poll en voting y dentro
// de la ventana; quienes apostaron en el poll no votan.
func (s *Service) CastVote(ctx context.Context, pollID, voterID string, choice domain.VoteChoice) (domain.Vote, error) {
	if voterID == "" {
		return domain.Vote{}, domain.Invalid("voter", "required")
	}
	choice, err := domain.ParseVoteChoice(string(choice))
	if err != nil {
		return domain.Vote{}, err
	}

	unlock := s.polls.Lock(pollID)
	defer unlock()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("market.CastVote: %w", err)
	}
	if poll.Status != domain.PollVoting {
		return domain.Vote{}, domain.Invalid("status", "poll is "+string(poll.Status)+", not voting")
	}
	now := s.clock.Now()
	if poll.VotingEndsAt != nil && !now.Before(*poll.VotingEndsAt) {
		return domain.Vote{}, domain.Invalid("voting_ends_at", "voting window closed")
	}

	stakes, err := s.store.ListStakesByPoll(ctx, pollID)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("market.CastVote: %w", err)
	}
	for _, st := range stakes {
		if st.UserID == voterID {
			return domain.Vote{}, domain.Invalid("voter", "stakers cannot vote on their own poll")
		}
	}

	votes, err := s.store.ListVotes(ctx, pollID)
	if err != nil {
		return domain.Vote{}, fmt.Errorf("market.CastVote: %w", err)
	}
	for _, v := range votes {
		if v.VoterID == voterID {
			return domain.Vote{}, domain.InvalidErr("voter", "already voted", domain.ErrAlreadyVoted)
		}
	}

	vote := domain.Vote{
		ID:      uuid.NewString(),
		PollID:  pollID,
		VoterID: voterID,
		Choice:  choice,
		Reward:  s.voterReward(poll, choice, len(votes)+1),
		CastAt:  now,
	}

	var tx domain.Transaction
	if vote.Reward.IsPositive() {
		tx, err = s.chain.Submit(ctx, domain.TxRequest{
			Kind:        domain.TxVoteReward,
			UserID:      voterID,
			Amount:      vote.Reward,
			Description: "Voting reward",
		})
		if err != nil {
			return domain.Vote{}, fmt.Errorf("market.CastVote: %w", err)
		}
	}

	if err := s.store.RecordVote(ctx, vote); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			return domain.Vote{}, domain.InvalidErr("voter", "already voted", err)
		}
		return domain.Vote{}, fmt.Errorf("market.CastVote: %w", err)
	}
	if tx.ID != "" {
		s.saveTx(ctx, tx)
	}

	slog.Info("vote cast",
		"poll_id", pollID,
		"voter_id", voterID,
		"choice", choice,
		"reward", vote.Reward,
	)
	return vote, nil
}

// voterReward aplica la curva de participación. voters cuenta todos los votos,
// unclear incluidos, y al votante actual. Pasado el número de elegibles el
// reward es 0, así lo pagado en el acto nunca supera pool × VoterRewardMax.
func (s *Service) voterReward(poll domain.Poll, choice domain.VoteChoice, voters int) decimal.Decimal {
	if !choice.Counts() {
		return decimal.Zero
	}
	eligible := s.eligibleVoters(poll)
	if voters > eligible {
		return decimal.Zero
	}
	return domain.VoterReward(poll.Pool.Snapshot().Total(), voters, eligible)
}

func (s *Service) eligibleVoters(poll domain.Poll) int {
	if poll.EligibleVoters > 0 {
		return poll.EligibleVoters
	}
	return s.cfg.DefaultEligibleVoters
}
