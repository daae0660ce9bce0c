package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alejandrodnm/predictx/internal/adapters/storage"
	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 14, 18, 0, 0, 0, time.UTC)

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func makePoll(id string) domain.Poll {
	return domain.Poll{
		ID:             id,
		MatchID:        "match-1",
		Question:       "Will Messi score in the first half?",
		Category:       domain.CategoryPlayerEvent,
		CreatedBy:      "creator",
		CreatedAt:      t0,
		LockTime:       t0.Add(time.Hour),
		Status:         domain.PollActive,
		Pool:           domain.Pool{YesTotal: decimal.Zero, NoTotal: decimal.Zero},
		EligibleVoters: 100,
	}
}

func makeStake(id, pollID, user string, side domain.Side, amount string) domain.Stake {
	return domain.Stake{
		ID:                id,
		PollID:            pollID,
		UserID:            user,
		Side:              side,
		Amount:            dec(amount),
		PlacedAt:          t0.Add(time.Minute),
		Status:            domain.StakeActive,
		PotentialWinnings: decimal.Zero,
		Payout:            decimal.Zero,
		Profit:            decimal.Zero,
		ROI:               decimal.Zero,
	}
}

func fund(t *testing.T, db *storage.SQLiteStorage, user, amount string) {
	t.Helper()
	_, err := db.Adjust(context.Background(), user, dec(amount))
	require.NoError(t, err)
}

func TestSQLiteStorage_PollRoundTrip(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	p := makePoll("p1")
	require.NoError(t, db.CreatePoll(ctx, p))

	got, err := db.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p.Question, got.Question)
	assert.Equal(t, domain.CategoryPlayerEvent, got.Category)
	assert.True(t, got.LockTime.Equal(p.LockTime))
	assert.True(t, got.Pool.YesTotal.IsZero())
	assert.Nil(t, got.VotingEndsAt)
	assert.False(t, got.IsSettled())

	ends := t0.Add(3 * time.Hour)
	got.Status = domain.PollVoting
	got.VotingEndsAt = &ends
	require.NoError(t, db.UpdatePoll(ctx, got))

	again, err := db.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.PollVoting, again.Status)
	require.NotNil(t, again.VotingEndsAt)
	assert.True(t, again.VotingEndsAt.Equal(ends))
}

func TestSQLiteStorage_GetPollNotFound(t *testing.T) {
	db := newDB(t)
	_, err := db.GetPoll(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	err = db.UpdatePoll(context.Background(), makePoll("nope"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteStorage_ListPollsByStatus(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	a := makePoll("a")
	b := makePoll("b")
	b.Status = domain.PollLocked
	require.NoError(t, db.CreatePoll(ctx, a))
	require.NoError(t, db.CreatePoll(ctx, b))

	all, err := db.ListPolls(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := db.ListPolls(ctx, domain.PollActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)

	none, err := db.ListPolls(ctx, domain.PollFinal)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStorage_BalanceAdjust(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	bal, err := db.Balance(ctx, "ghost")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	bal, err = db.Adjust(ctx, "alice", dec("100.50"))
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("100.50")))

	_, err = db.Adjust(ctx, "alice", dec("-200"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	bal, err = db.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("100.50")), "failed debit must not change the balance")
}

func TestSQLiteStorage_RecordStakeAtomic(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreatePoll(ctx, makePoll("p1")))
	fund(t, db, "alice", "150")

	pool, err := db.RecordStake(ctx, makeStake("s1", "p1", "alice", domain.SideYes, "100"))
	require.NoError(t, err)
	assert.True(t, pool.YesTotal.Equal(dec("100")))
	assert.Equal(t, 1, pool.YesParticipants)

	bal, err := db.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("50")))

	// Saldo insuficiente: ni pool ni stake ni saldo cambian.
	_, err = db.RecordStake(ctx, makeStake("s2", "p1", "alice", domain.SideNo, "60"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientBalance))

	p, err := db.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Pool.NoTotal.IsZero())
	assert.Equal(t, 0, p.Pool.NoParticipants)

	_, err = db.GetStake(ctx, "s2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	bal, err = db.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("50")))
}

func TestSQLiteStorage_RecordStakeFrozenPool(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	p := makePoll("p1")
	p.Status = domain.PollLocked
	require.NoError(t, db.CreatePoll(ctx, p))
	fund(t, db, "alice", "100")

	_, err := db.RecordStake(ctx, makeStake("s1", "p1", "alice", domain.SideYes, "10"))
	assert.True(t, errors.Is(err, domain.ErrPoolFrozen))

	bal, err := db.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("100")))
}

func TestSQLiteStorage_StakeQueriesAndPending(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreatePoll(ctx, makePoll("p1")))
	fund(t, db, "alice", "100")
	fund(t, db, "bob", "100")

	s1 := makeStake("s1", "p1", "alice", domain.SideYes, "10")
	s2 := makeStake("s2", "p1", "bob", domain.SideNo, "20")
	s2.PlacedAt = s1.PlacedAt.Add(time.Second)
	_, err := db.RecordStake(ctx, s1)
	require.NoError(t, err)
	_, err = db.RecordStake(ctx, s2)
	require.NoError(t, err)

	byPoll, err := db.ListStakesByPoll(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, byPoll, 2)
	assert.Equal(t, "s1", byPoll[0].ID)
	assert.Equal(t, "s2", byPoll[1].ID)

	byUser, err := db.ListStakesByUser(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.True(t, byUser[0].Amount.Equal(dec("20")))

	n, err := db.MarkStakesPending(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := db.GetStake(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StakePendingResolution, got.Status)
}

func TestSQLiteStorage_RecordVoteCreditsReward(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	v := domain.Vote{ID: "v1", PollID: "p1", VoterID: "carol", Choice: domain.VoteYes,
		Reward: dec("0.75"), CastAt: t0}
	require.NoError(t, db.RecordVote(ctx, v))

	bal, err := db.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("0.75")))

	v.ID = "v2"
	err = db.RecordVote(ctx, v)
	assert.True(t, errors.Is(err, domain.ErrAlreadyVoted))

	bal, err = db.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("0.75")), "duplicate vote must not pay twice")

	votes, err := db.ListVotes(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, domain.VoteYes, votes[0].Choice)
}

func TestSQLiteStorage_ApprovalsAndDisputes(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	a := domain.Approval{PollID: "p1", AdminID: "admin-1", Result: domain.SideNo, ApprovedAt: t0}
	require.NoError(t, db.SaveApproval(ctx, a))
	assert.True(t, errors.Is(db.SaveApproval(ctx, a), domain.ErrAlreadyVoted))

	approvals, err := db.ListApprovals(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, domain.SideNo, approvals[0].Result)

	d := domain.Dispute{ID: "d1", PollID: "p1", UserID: "dave", Reason: "VAR overturned it", SubmittedAt: t0}
	require.NoError(t, db.SaveDispute(ctx, d))
	require.NoError(t, db.ResolveDisputes(ctx, "p1", "admin-2", domain.SideYes, t0.Add(time.Hour)))

	disputes, err := db.ListDisputes(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	assert.Equal(t, "admin-2", disputes[0].ResolvedBy)
	assert.Equal(t, domain.SideYes, disputes[0].Ruling)
	require.NotNil(t, disputes[0].ResolvedAt)
}

func TestSQLiteStorage_SaveSettlementOnce(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreatePoll(ctx, makePoll("p1")))
	fund(t, db, "alice", "100")
	fund(t, db, "bob", "100")

	_, err := db.RecordStake(ctx, makeStake("s1", "p1", "alice", domain.SideYes, "100"))
	require.NoError(t, err)
	_, err = db.RecordStake(ctx, makeStake("s2", "p1", "bob", domain.SideNo, "100"))
	require.NoError(t, err)

	stakes, err := db.ListStakesByPoll(ctx, "p1")
	require.NoError(t, err)
	alloc := domain.AllocatePayouts(dec("200"), domain.SideYes, stakes, domain.DefaultFeeRate)

	st := domain.Settlement{
		PollID: "p1", Result: domain.SideYes, Total: alloc.Total, Fee: alloc.Fee,
		Distributable: alloc.Distributable, PaidOut: alloc.PaidOut(),
		Winners: alloc.Winners, Losers: alloc.Losers, SettledAt: t0.Add(30 * time.Hour),
	}
	require.NoError(t, db.SaveSettlement(ctx, st, alloc.Payouts))

	bal, err := db.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("190")), "got %s", bal)

	err = db.SaveSettlement(ctx, st, alloc.Payouts)
	assert.True(t, errors.Is(err, domain.ErrAlreadySettled))

	bal, err = db.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("190")), "second settlement must not credit")

	lost, err := db.GetStake(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, domain.StakeLost, lost.Status)
	assert.True(t, lost.Profit.Equal(dec("-100")))

	saved, err := db.GetSettlement(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, saved.Fee.Equal(dec("10")))
	assert.Equal(t, 1, saved.Winners)

	p, err := db.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.IsSettled())
}

func TestSQLiteStorage_PlatformStats(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreatePoll(ctx, makePoll("p1")))
	fund(t, db, "alice", "100")
	fund(t, db, "bob", "100")

	_, err := db.RecordStake(ctx, makeStake("s1", "p1", "alice", domain.SideYes, "40.25"))
	require.NoError(t, err)
	_, err = db.RecordStake(ctx, makeStake("s2", "p1", "bob", domain.SideNo, "10"))
	require.NoError(t, err)
	require.NoError(t, db.RecordVote(ctx, domain.Vote{ID: "v1", PollID: "p1", VoterID: "carol",
		Choice: domain.VoteNo, Reward: dec("0.5"), CastAt: t0}))

	stats, err := db.PlatformStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalValueLocked.Equal(dec("50.25")))
	assert.Equal(t, 1, stats.ActivePredictions)
	assert.Equal(t, 3, stats.CommunityMembers)
	assert.True(t, stats.TotalVoterRewards.Equal(dec("0.5")))
	assert.True(t, stats.TotalPayouts.IsZero())
}

func TestSQLiteStorage_Transactions(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	for i, kind := range []domain.TxKind{domain.TxStake, domain.TxClaimWinnings} {
		require.NoError(t, db.SaveTransaction(ctx, domain.Transaction{
			ID: string(kind), Hash: "abc", Kind: kind, UserID: "alice",
			Amount: dec("10"), Fee: dec("0.00001"), Status: domain.TxConfirmed,
			Ledger: int64(1000 + i), SubmittedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	txs, err := db.ListTransactions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxClaimWinnings, txs[0].Kind)
	assert.True(t, txs[1].Fee.Equal(dec("0.00001")))
}

func TestSQLiteStorage_SubSecondOrdering(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreatePoll(ctx, makePoll("p1")))
	fund(t, db, "first", "10")
	fund(t, db, "second", "10")

	// .1 y .12: con fracciones sin ceros a la derecha ".12Z" ordenaría antes que ".1Z".
	first := makeStake("s1", "p1", "first", domain.SideYes, "1")
	first.PlacedAt = t0.Add(100 * time.Millisecond)
	second := makeStake("s2", "p1", "second", domain.SideYes, "1")
	second.PlacedAt = t0.Add(120 * time.Millisecond)
	_, err := db.RecordStake(ctx, first)
	require.NoError(t, err)
	_, err = db.RecordStake(ctx, second)
	require.NoError(t, err)

	stakes, err := db.ListStakesByPoll(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, stakes, 2)
	assert.Equal(t, "first", stakes[0].UserID)
	assert.Equal(t, "second", stakes[1].UserID)
	assert.True(t, stakes[0].PlacedAt.Equal(first.PlacedAt))

	late := makePoll("a-late")
	late.LockTime = t0.Add(time.Hour + 120*time.Millisecond)
	early := makePoll("z-early")
	early.LockTime = t0.Add(time.Hour + 100*time.Millisecond)
	require.NoError(t, db.CreatePoll(ctx, late))
	require.NoError(t, db.CreatePoll(ctx, early))

	polls, err := db.ListPolls(ctx)
	require.NoError(t, err)
	require.Len(t, polls, 3)
	assert.Equal(t, []string{"p1", "z-early", "a-late"}, []string{polls[0].ID, polls[1].ID, polls[2].ID})
}

func TestSQLiteStorage_GetVote(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	v := domain.Vote{ID: "v1", PollID: "p1", VoterID: "carol", Choice: domain.VoteNo,
		Reward: dec("0.25"), CastAt: t0}
	require.NoError(t, db.RecordVote(ctx, v))

	got, err := db.GetVote(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "carol", got.VoterID)
	assert.Equal(t, domain.VoteNo, got.Choice)
	assert.True(t, got.Reward.Equal(dec("0.25")))
	assert.True(t, got.CastAt.Equal(t0))

	_, err = db.GetVote(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSQLiteStorage_RecordVoterBonusesOnce(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	bonuses := []domain.VoterBonus{
		{PollID: "p1", VoterID: "carol", Amount: dec("1.71"), CreditedAt: t0},
		{PollID: "p1", VoterID: "dave", Amount: dec("0.50"), CreditedAt: t0},
	}
	require.NoError(t, db.RecordVoterBonuses(ctx, bonuses))
	require.NoError(t, db.RecordVoterBonuses(ctx, bonuses), "repeat is a no-op")

	bal, err := db.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("1.71")), "got %s", bal)

	got, err := db.ListVoterBonuses(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	stats, err := db.PlatformStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalVoterRewards.Equal(dec("2.21")), "got %s", stats.TotalVoterRewards)
}
