package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/predictx/config"
	"github.com/alejandrodnm/predictx/internal/adapters/clock"
	"github.com/alejandrodnm/predictx/internal/adapters/storage"
	"github.com/alejandrodnm/predictx/internal/application/market"
	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/alejandrodnm/predictx/internal/ports"
	"github.com/shopspring/decimal"
)

// runDemo recorre dos partidos completos con reloj simulado y SQLite en memoria:
// uno se resuelve por consenso, el otro pasa por admin y disputa.
func runDemo(ctx context.Context, cfg *config.Config, console ports.Reporter) error {
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		return fmt.Errorf("demo: open storage: %w", err)
	}
	defer store.Close()

	clk := clock.NewFake(time.Now().UTC().Truncate(time.Minute))
	svc := newService(cfg, store, clk)

	slog.Info("=== DEMO: two matches, simulated clock ===", "fee_rate", svc.FeeRate())

	for user, amt := range map[string]int64{"alice": 500, "bob": 300, "carol": 200, "dave": 150} {
		if _, err := svc.Deposit(ctx, user, decimal.NewFromInt(amt)); err != nil {
			return fmt.Errorf("demo: deposit %s: %w", user, err)
		}
	}

	kickoff := clk.Now().Add(90 * time.Minute)
	messi, err := svc.CreatePoll(ctx, market.NewPoll{
		MatchID:        "ARG-FRA",
		Question:       "Will Messi score in the first half?",
		Category:       domain.CategoryPlayerEvent,
		CreatedBy:      "admin-1",
		LockTime:       kickoff,
		EligibleVoters: 10,
	})
	if err != nil {
		return fmt.Errorf("demo: create poll: %w", err)
	}
	cards, err := svc.CreatePoll(ctx, market.NewPoll{
		MatchID:   "ARG-FRA",
		Question:  "Will there be a red card?",
		Category:  domain.CategoryTeamEvent,
		CreatedBy: "admin-1",
		LockTime:  kickoff,
	})
	if err != nil {
		return fmt.Errorf("demo: create poll: %w", err)
	}

	stakes := []struct {
		poll   string
		user   string
		side   domain.Side
		amount int64
	}{
		{messi.ID, "alice", domain.SideYes, 200},
		{messi.ID, "bob", domain.SideYes, 100},
		{messi.ID, "carol", domain.SideNo, 150},
		{cards.ID, "bob", domain.SideYes, 50},
		{cards.ID, "dave", domain.SideNo, 120},
	}
	for _, s := range stakes {
		if _, err := svc.PlaceStake(ctx, s.poll, s.user, s.side, decimal.NewFromInt(s.amount)); err != nil {
			return fmt.Errorf("demo: stake %s: %w", s.user, err)
		}
	}

	preview := decimal.NewFromInt(50)
	w, err := svc.PreviewStake(ctx, messi.ID, domain.SideNo, preview)
	if err != nil {
		return err
	}
	current, err := svc.Poll(ctx, messi.ID)
	if err != nil {
		return err
	}
	console.PrintPreview(current, domain.SideNo, preview, w)

	if err := runReport(ctx, svc, console); err != nil {
		return err
	}

	// Kickoff: los pools se congelan y abre la votación.
	clk.Set(kickoff.Add(time.Minute))
	if _, err := svc.Advance(ctx); err != nil {
		return err
	}

	votes := []struct {
		poll   string
		voter  string
		choice domain.VoteChoice
	}{
		{messi.ID, "voter-1", domain.VoteYes},
		{messi.ID, "voter-2", domain.VoteYes},
		{messi.ID, "voter-3", domain.VoteYes},
		{messi.ID, "voter-4", domain.VoteUnclear},
		{cards.ID, "voter-1", domain.VoteYes},
		{cards.ID, "voter-2", domain.VoteYes},
		{cards.ID, "voter-3", domain.VoteNo},
	}
	for _, v := range votes {
		vote, err := svc.CastVote(ctx, v.poll, v.voter, v.choice)
		if err != nil {
			return fmt.Errorf("demo: vote %s: %w", v.voter, err)
		}
		slog.Info("vote cast", "voter", v.voter, "choice", v.choice, "reward", vote.Reward)
	}

	clk.Advance(domain.VotingWindow)
	if _, err := svc.Advance(ctx); err != nil {
		return err
	}

	// 2/3 de consenso: decide un admin, dave impugna y otro admin rectifica.
	if _, err := svc.ApproveResolution(ctx, cards.ID, "admin-1", domain.SideYes); err != nil {
		return fmt.Errorf("demo: approve: %w", err)
	}
	if _, err := svc.SubmitDispute(ctx, cards.ID, "dave", "VAR downgraded the red card to yellow"); err != nil {
		return fmt.Errorf("demo: dispute: %w", err)
	}
	if _, err := svc.ResolveDispute(ctx, cards.ID, "admin-2", domain.SideNo); err != nil {
		return fmt.Errorf("demo: resolve dispute: %w", err)
	}

	if err := runReport(ctx, svc, console); err != nil {
		return err
	}

	clk.Advance(domain.DisputeWindow)
	rep, err := svc.Advance(ctx)
	if err != nil {
		return err
	}
	slog.Info("advance cycle", "finalized", rep.Finalized, "settled", rep.Settled, "failed", rep.Failed)

	for _, p := range []domain.Poll{messi, cards} {
		if err := printSettlement(ctx, svc, console, p.ID); err != nil {
			return err
		}
	}
	for _, user := range []string{"alice", "bob", "carol", "dave", "voter-1"} {
		if err := runUser(ctx, svc, console, user); err != nil {
			return err
		}
	}
	return runReport(ctx, svc, console)
}

func printSettlement(ctx context.Context, svc *market.Service, console ports.Reporter, pollID string) error {
	poll, err := svc.Poll(ctx, pollID)
	if err != nil {
		return err
	}
	st, err := svc.Settlement(ctx, pollID)
	if err != nil {
		return fmt.Errorf("demo: settlement %s: %w", pollID, err)
	}
	stakes, err := svc.Stakes(ctx, pollID)
	if err != nil {
		return err
	}
	return console.ReportSettlement(ctx, poll, st, stakes)
}
