package market_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alejandrodnm/predictx/internal/adapters/fault"
	"github.com/alejandrodnm/predictx/internal/application/market"
	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	return ve.Field
}

func TestCastVote_Rules(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	ctx := context.Background()
	p := h.createPoll(t)
	h.fund(t, "alice", "500")
	h.fund(t, "bob", "500")
	h.stake(t, p.ID, "alice", domain.SideYes, "100")
	h.stake(t, p.ID, "bob", domain.SideNo, "300")

	_, err := h.svc.CastVote(ctx, p.ID, "carol", domain.VoteYes)
	assert.Equal(t, "status", fieldOf(t, err), "no votes before voting opens")

	h.openVoting(t, p.ID)

	_, err = h.svc.CastVote(ctx, p.ID, "alice", domain.VoteYes)
	assert.Equal(t, "voter", fieldOf(t, err), "stakers cannot vote")

	_, err = h.svc.CastVote(ctx, p.ID, "carol", "maybe")
	assert.Equal(t, "choice", fieldOf(t, err))

	v := h.vote(t, p.ID, "carol", domain.VoteYes)
	// pool 400, 1 de 10 elegibles: 400 × 0.0095 / 10
	assert.True(t, v.Reward.Equal(dec("0.38")), "got %s", v.Reward)
	assert.True(t, h.balance(t, "carol").Equal(dec("0.38")))

	_, err = h.svc.CastVote(ctx, p.ID, "carol", domain.VoteNo)
	assert.True(t, errors.Is(err, domain.ErrAlreadyVoted))
	assert.True(t, h.balance(t, "carol").Equal(dec("0.38")), "duplicate vote pays nothing")

	u := h.vote(t, p.ID, "dave", domain.VoteUnclear)
	assert.True(t, u.Reward.IsZero())
	assert.True(t, h.balance(t, "dave").IsZero())

	h.clock.Advance(domain.VotingWindow)
	_, err = h.svc.CastVote(ctx, p.ID, "erin", domain.VoteNo)
	assert.Equal(t, "voting_ends_at", fieldOf(t, err))

	votes, tally, err := h.svc.Votes(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 2)
	assert.Equal(t, domain.Tally{Yes: 1, Unclear: 1}, tally)
}

func TestCastVote_RewardsStayWithinBudget(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	p := h.createPoll(t) // 10 elegibles
	h.fund(t, "alice", "100")
	h.fund(t, "bob", "100")
	h.stake(t, p.ID, "alice", domain.SideYes, "100")
	h.stake(t, p.ID, "bob", domain.SideNo, "100")
	h.openVoting(t, p.ID)

	total := decimal.Zero
	prev := decimal.NewFromInt(1 << 20)
	for i := 1; i <= 12; i++ {
		v := h.vote(t, p.ID, fmt.Sprintf("voter-%02d", i), domain.VoteYes)
		assert.True(t, v.Reward.LessThanOrEqual(prev), "reward must not grow with participation")
		prev = v.Reward
		total = total.Add(v.Reward)
		if i > 10 {
			assert.True(t, v.Reward.IsZero(), "budget exhausted past eligible voters")
		}
	}

	pool := dec("200")
	assert.True(t, total.LessThanOrEqual(pool.Mul(domain.VoterRewardMax)), "got %s", total)
	assert.True(t, total.IsPositive())

	stats, err := h.svc.PlatformStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.TotalVoterRewards.Equal(total))
}

func TestCloseVoting_WindowStillOpen(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	p := h.createPoll(t)
	h.openVoting(t, p.ID)

	_, err := h.svc.CloseVoting(context.Background(), p.ID)
	assert.Equal(t, "voting_ends_at", fieldOf(t, err))

	h.clock.Advance(domain.VotingWindow)
	route, err := h.svc.CloseVoting(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PollAdminReview, route.Pathway, "no valid votes goes to admin review")
	assert.Equal(t, domain.PollAdminReview, h.poll(t, p.ID).Status)
}

func TestCloseVoting_Routes(t *testing.T) {
	tests := []struct {
		name    string
		yes, no int
		unclear int
		want    domain.PollStatus
	}{
		{"auto approve at 85%", 17, 3, 0, domain.PollResolved},
		{"admin review below 85%", 5, 2, 0, domain.PollAdminReview},
		{"multi-sig below 60%", 1, 1, 0, domain.PollMultiSigReview},
		{"only unclear", 0, 0, 3, domain.PollAdminReview},
		{"unclear ignored for share", 6, 1, 5, domain.PollResolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, market.Config{}, nil)
			p := h.createPoll(t)
			h.openVoting(t, p.ID)

			n := 0
			cast := func(c domain.VoteChoice, k int) {
				for i := 0; i < k; i++ {
					n++
					h.vote(t, p.ID, fmt.Sprintf("v%03d", n), c)
				}
			}
			cast(domain.VoteYes, tt.yes)
			cast(domain.VoteNo, tt.no)
			cast(domain.VoteUnclear, tt.unclear)

			h.closeVoting(t)
			got := h.poll(t, p.ID)
			assert.Equal(t, tt.want, got.Status)
			if tt.want == domain.PollResolved {
				assert.Equal(t, domain.SideYes, got.Result)
				require.NotNil(t, got.DisputeEndsAt)
				assert.Equal(t, domain.DisputeWindow, got.DisputeEndsAt.Sub(*got.ResolvedAt))
			}
		})
	}
}

func TestCastVote_NormalizesChoice(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	ctx := context.Background()
	p := h.createPoll(t)
	h.fund(t, "alice", "100")
	h.stake(t, p.ID, "alice", domain.SideYes, "100")
	h.openVoting(t, p.ID)

	v, err := h.svc.CastVote(ctx, p.ID, "carol", "YES")
	require.NoError(t, err)
	assert.Equal(t, domain.VoteYes, v.Choice)
	assert.True(t, v.Reward.IsPositive())

	w, err := h.svc.CastVote(ctx, p.ID, "dave", " No ")
	require.NoError(t, err)
	assert.Equal(t, domain.VoteNo, w.Choice)

	_, tally, err := h.svc.Votes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{Yes: 1, No: 1}, tally)

	stored, err := h.svc.Vote(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteYes, stored.Choice)
	assert.Equal(t, "carol", stored.VoterID)

	_, err = h.svc.Vote(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCloseVoting_TopsUpToBudget(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	ctx := context.Background()
	p := h.createPoll(t) // 10 elegibles
	h.fund(t, "alice", "100")
	h.fund(t, "bob", "100")
	h.stake(t, p.ID, "alice", domain.SideYes, "100")
	h.stake(t, p.ID, "bob", domain.SideNo, "100")
	h.openVoting(t, p.ID)

	// pool 200, 1 de 10: 200 × 0.0095 / 10
	v := h.vote(t, p.ID, "carol", domain.VoteYes)
	assert.True(t, v.Reward.Equal(dec("0.19")), "got %s", v.Reward)
	// unclear no cobra pero cuenta como participación.
	h.vote(t, p.ID, "dave", domain.VoteUnclear)

	h.closeVoting(t)
	require.Equal(t, domain.PollResolved, h.poll(t, p.ID).Status)

	// 2 de 10 votaron: presupuesto 200 × 0.009 = 1.80, todo para carol.
	assert.True(t, h.balance(t, "carol").Equal(dec("1.80")), "got %s", h.balance(t, "carol"))
	assert.True(t, h.balance(t, "dave").IsZero())

	bonuses, err := h.svc.VoterBonuses(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, bonuses, 1)
	assert.True(t, bonuses[0].Amount.Equal(dec("1.61")))

	pool := dec("200")
	stats, err := h.svc.PlatformStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalVoterRewards.Equal(dec("1.80")))
	assert.True(t, stats.TotalVoterRewards.GreaterThanOrEqual(pool.Mul(domain.VoterRewardMin)))
	assert.True(t, stats.TotalVoterRewards.LessThanOrEqual(pool.Mul(domain.VoterRewardMax)))
}

func TestCloseVoting_TopUpRetriedAfterTxFault(t *testing.T) {
	// create, stake alice, stake bob y reward de carol confirman; el complemento falla una vez.
	h := newHarness(t, market.Config{}, fault.NewScript(false, false, false, false, true))
	ctx := context.Background()
	p := h.createPoll(t)
	h.fund(t, "alice", "100")
	h.fund(t, "bob", "100")
	h.stake(t, p.ID, "alice", domain.SideYes, "100")
	h.stake(t, p.ID, "bob", domain.SideNo, "100")
	h.openVoting(t, p.ID)
	h.vote(t, p.ID, "carol", domain.VoteYes)

	h.clock.Advance(domain.VotingWindow)
	report, err := h.svc.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.PollVoting, h.poll(t, p.ID).Status)
	assert.True(t, h.balance(t, "carol").Equal(dec("0.19")))

	report, err = h.svc.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Routed)
	assert.Equal(t, domain.PollResolved, h.poll(t, p.ID).Status)
	assert.True(t, h.balance(t, "carol").Equal(dec("1.90")), "got %s", h.balance(t, "carol"))
}
