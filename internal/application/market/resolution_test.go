package market_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alejandrodnm/predictx/internal/application/market"
	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routeTo deja el poll en el estado de revisión que producen los votos dados.
func routeTo(t *testing.T, h *harness, pollID string, yes, no int) {
	t.Helper()
	h.openVoting(t, pollID)
	for i := 0; i < yes; i++ {
		h.vote(t, pollID, fmt.Sprintf("y%02d", i), domain.VoteYes)
	}
	for i := 0; i < no; i++ {
		h.vote(t, pollID, fmt.Sprintf("n%02d", i), domain.VoteNo)
	}
	h.closeVoting(t)
}

func TestApproveResolution_AdminReview(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	ctx := context.Background()
	p := h.createPoll(t)
	routeTo(t, h, p.ID, 2, 1)
	require.Equal(t, domain.PollAdminReview, h.poll(t, p.ID).Status)

	got, err := h.svc.ApproveResolution(ctx, p.ID, "admin-1", domain.SideNo)
	require.NoError(t, err)
	assert.Equal(t, domain.PollResolved, got.Status)
	assert.Equal(t, domain.SideNo, got.Result, "admin decides, not the vote majority")
	require.NotNil(t, got.DisputeEndsAt)

	_, err = h.svc.ApproveResolution(ctx, p.ID, "admin-2", domain.SideNo)
	assert.Equal(t, "status", fieldOf(t, err))
}

func TestApproveResolution_MultiSig(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	ctx := context.Background()
	p := h.createPoll(t)
	routeTo(t, h, p.ID, 1, 1)
	require.Equal(t, domain.PollMultiSigReview, h.poll(t, p.ID).Status)

	got, err := h.svc.ApproveResolution(ctx, p.ID, "admin-1", domain.SideYes)
	require.NoError(t, err)
	assert.Equal(t, domain.PollMultiSigReview, got.Status)

	_, err = h.svc.ApproveResolution(ctx, p.ID, "admin-2", domain.SideNo)
	assert.Equal(t, "result", fieldOf(t, err), "conflicting approval")

	_, err = h.svc.ApproveResolution(ctx, p.ID, "admin-1", domain.SideYes)
	assert.True(t, errors.Is(err, domain.ErrAlreadyVoted))

	got, err = h.svc.ApproveResolution(ctx, p.ID, "admin-2", domain.SideYes)
	require.NoError(t, err)
	assert.Equal(t, domain.PollMultiSigReview, got.Status)

	got, err = h.svc.ApproveResolution(ctx, p.ID, "admin-3", domain.SideYes)
	require.NoError(t, err)
	assert.Equal(t, domain.PollResolved, got.Status)
	assert.Equal(t, domain.SideYes, got.Result)

	approvals, err := h.svc.Approvals(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, approvals, domain.MultiSigApprovals)
}

func TestApproveResolution_NotInReview(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	p := h.createPoll(t)

	_, err := h.svc.ApproveResolution(context.Background(), p.ID, "admin-1", domain.SideYes)
	assert.Equal(t, "status", fieldOf(t, err))

	_, err = h.svc.ApproveResolution(context.Background(), p.ID, "admin-1", "")
	assert.Equal(t, "result", fieldOf(t, err))
}

func TestDispute_OverturnsResult(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	ctx := context.Background()
	p := h.createPoll(t)
	h.fund(t, "alice", "500")
	h.fund(t, "bob", "300")
	h.stake(t, p.ID, "alice", domain.SideYes, "100")
	h.stake(t, p.ID, "bob", domain.SideNo, "300")

	routeTo(t, h, p.ID, 1, 0)
	require.Equal(t, domain.SideYes, h.poll(t, p.ID).Result)

	d, err := h.svc.SubmitDispute(ctx, p.ID, "bob", "goal was offside")
	require.NoError(t, err)
	assert.Equal(t, "bob", d.UserID)
	assert.Equal(t, domain.PollDispute, h.poll(t, p.ID).Status)

	// Una disputa abierta congela el poll: pasar la ventana no lo finaliza.
	h.clock.Advance(domain.DisputeWindow)
	report, err := h.svc.Advance(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Finalized)
	assert.Equal(t, domain.PollDispute, h.poll(t, p.ID).Status)

	final, err := h.svc.ResolveDispute(ctx, p.ID, "admin-1", domain.SideNo)
	require.NoError(t, err)
	assert.Equal(t, domain.PollFinal, final.Status)
	assert.Equal(t, domain.SideNo, final.Result)

	disputes, err := h.svc.Disputes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	assert.Equal(t, domain.SideNo, disputes[0].Ruling)

	// El resultado original ya no vale.
	_, err = h.svc.SettlePoll(ctx, p.ID, domain.SideYes)
	assert.True(t, domain.IsConsistency(err))
	assert.False(t, errors.Is(err, domain.ErrAlreadySettled))

	st, err := h.svc.SettlePoll(ctx, p.ID, domain.SideNo)
	require.NoError(t, err)
	assert.True(t, st.PaidOut.Equal(dec("380")))
	assert.True(t, h.balance(t, "bob").Equal(dec("380")))
	assert.True(t, h.balance(t, "alice").Equal(dec("400")))
}

func TestDispute_WindowClosed(t *testing.T) {
	h := newHarness(t, market.Config{}, nil)
	ctx := context.Background()
	p := h.createPoll(t)

	_, err := h.svc.SubmitDispute(ctx, p.ID, "bob", "too early")
	assert.Equal(t, "status", fieldOf(t, err))

	routeTo(t, h, p.ID, 1, 0)
	_, err = h.svc.SubmitDispute(ctx, p.ID, "bob", "  ")
	assert.Equal(t, "reason", fieldOf(t, err))

	h.clock.Advance(domain.DisputeWindow)
	_, err = h.svc.SubmitDispute(ctx, p.ID, "bob", "late complaint")
	assert.Equal(t, "dispute_ends_at", fieldOf(t, err))

	_, err = h.svc.ResolveDispute(ctx, p.ID, "admin-1", domain.SideNo)
	assert.Equal(t, "status", fieldOf(t, err))
}
