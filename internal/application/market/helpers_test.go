package market_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/predictx/internal/adapters/chain"
	"github.com/alejandrodnm/predictx/internal/adapters/clock"
	"github.com/alejandrodnm/predictx/internal/adapters/storage"
	"github.com/alejandrodnm/predictx/internal/application/market"
	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/alejandrodnm/predictx/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 6, 14, 18, 0, 0, 0, time.UTC)

type harness struct {
	svc   *market.Service
	db    *storage.SQLiteStorage
	clock *clock.Fake
}

func newHarness(t *testing.T, cfg market.Config, faults ports.FaultInjector) *harness {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFake(t0)
	network := chain.NewSimulated(chain.Config{TxPerSec: 10000, Burst: 1000}, faults, clk)
	return &harness{
		svc:   market.New(cfg, db, network, clk),
		db:    db,
		clock: clk,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (h *harness) createPoll(t *testing.T) domain.Poll {
	t.Helper()
	p, err := h.svc.CreatePoll(context.Background(), market.NewPoll{
		MatchID:        "arg-fra",
		Question:       "Will Argentina score first?",
		Category:       domain.CategoryTeamEvent,
		CreatedBy:      "creator",
		LockTime:       t0.Add(time.Hour),
		EligibleVoters: 10,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) fund(t *testing.T, user, amount string) {
	t.Helper()
	_, err := h.svc.Deposit(context.Background(), user, dec(amount))
	require.NoError(t, err)
}

func (h *harness) stake(t *testing.T, pollID, user string, side domain.Side, amount string) market.Receipt {
	t.Helper()
	r, err := h.svc.PlaceStake(context.Background(), pollID, user, side, dec(amount))
	require.NoError(t, err)
	return r
}

func (h *harness) balance(t *testing.T, user string) decimal.Decimal {
	t.Helper()
	bal, err := h.svc.Balance(context.Background(), user)
	require.NoError(t, err)
	return bal
}

func (h *harness) poll(t *testing.T, id string) domain.Poll {
	t.Helper()
	p, err := h.svc.Poll(context.Background(), id)
	require.NoError(t, err)
	return p
}

// openVoting pasa el lock time y deja el poll en voting.
func (h *harness) openVoting(t *testing.T, pollID string) {
	t.Helper()
	p := h.poll(t, pollID)
	h.clock.Set(p.LockTime.Add(time.Minute))
	_, err := h.svc.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.PollVoting, h.poll(t, pollID).Status)
}

// closeVoting deja pasar la ventana de votación y enruta el recuento.
func (h *harness) closeVoting(t *testing.T) {
	t.Helper()
	h.clock.Advance(domain.VotingWindow)
	_, err := h.svc.Advance(context.Background())
	require.NoError(t, err)
}

func (h *harness) vote(t *testing.T, pollID, voter string, choice domain.VoteChoice) domain.Vote {
	t.Helper()
	v, err := h.svc.CastVote(context.Background(), pollID, voter, choice)
	require.NoError(t, err)
	return v
}

// resolveByVote lleva el poll hasta final con un voto unánime y lo liquida vía Advance.
func (h *harness) resolveByVote(t *testing.T, pollID string, result domain.Side) {
	t.Helper()
	h.openVoting(t, pollID)
	h.vote(t, pollID, "voter-1", domain.VoteChoice(result))
	h.closeVoting(t)
	require.Equal(t, domain.PollResolved, h.poll(t, pollID).Status)

	h.clock.Advance(domain.DisputeWindow)
	_, err := h.svc.Advance(context.Background())
	require.NoError(t, err)
}
