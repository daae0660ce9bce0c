package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/predictx/config"
	"github.com/alejandrodnm/predictx/internal/adapters/chain"
	"github.com/alejandrodnm/predictx/internal/adapters/clock"
	"github.com/alejandrodnm/predictx/internal/adapters/fault"
	"github.com/alejandrodnm/predictx/internal/adapters/notify"
	"github.com/alejandrodnm/predictx/internal/adapters/storage"
	"github.com/alejandrodnm/predictx/internal/application/market"
	"github.com/alejandrodnm/predictx/internal/application/scheduler"
	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/alejandrodnm/predictx/internal/ports"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	compact := flag.Bool("compact", false, "print one line per poll instead of a table")
	daemon := flag.Bool("daemon", false, "advance polls on the configured schedule until interrupted")
	demo := flag.Bool("demo", false, "run a scripted match lifecycle against an in-memory store")
	user := flag.String("user", "", "print stakes, balance and transactions for this user")
	preview := flag.String("preview", "", "poll id to preview a stake on (with -side and -amount)")
	side := flag.String("side", "yes", "side for -preview: yes|no")
	amount := flag.String("amount", "10", "amount for -preview")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole(*compact)

	if *demo {
		if err := runDemo(ctx, cfg, console); err != nil {
			slog.Error("demo failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("predictx starting",
		"config", *configPath,
		"dsn", cfg.Storage.DSN,
		"fee_rate", cfg.FeeRate(),
		"daemon", *daemon,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	svc := newService(cfg, store, clock.System{})

	switch {
	case *daemon:
		sched, err := scheduler.New(cfg.Scheduler.Spec, svc)
		if err != nil {
			slog.Error("invalid schedule", "err", err, "spec", cfg.Scheduler.Spec)
			os.Exit(1)
		}
		if err := sched.Run(ctx); err != nil {
			slog.Error("scheduler exited with error", "err", err)
			os.Exit(1)
		}
	case *preview != "":
		err = runPreview(ctx, svc, console, *preview, *side, *amount)
	case *user != "":
		err = runUser(ctx, svc, console, *user)
	default:
		err = runReport(ctx, svc, console)
	}
	if err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}

	slog.Info("predictx stopped cleanly")
}

// newService arma el servicio de mercado con la red simulada configurada.
func newService(cfg *config.Config, store *storage.SQLiteStorage, clk ports.Clock) *market.Service {
	var faults ports.FaultInjector = fault.Never{}
	if cfg.Chain.FaultRate > 0 {
		faults = fault.NewSeeded(cfg.Chain.FaultRate, cfg.Chain.FaultSeed)
	}
	network := chain.NewSimulated(chain.Config{
		TxPerSec:     cfg.Chain.TxPerSec,
		Burst:        cfg.Chain.Burst,
		ConfirmDelay: cfg.ConfirmDelay(),
		MaxRetries:   cfg.Chain.MaxRetries,
	}, faults, clk)

	return market.New(market.Config{
		FeeRate:               cfg.FeeRate(),
		MinStake:              cfg.MinStake(),
		ExclusiveSide:         cfg.Market.ExclusiveSide,
		DefaultEligibleVoters: cfg.Market.EligibleVoters,
		AdvanceWorkers:        cfg.Market.AdvanceWorkers,
	}, store, network, clk)
}

func runReport(ctx context.Context, svc *market.Service, console ports.Reporter) error {
	polls, err := svc.Polls(ctx)
	if err != nil {
		return err
	}
	if err := console.ReportPolls(ctx, polls); err != nil {
		return err
	}
	stats, err := svc.PlatformStats(ctx)
	if err != nil {
		return err
	}
	console.PrintStats(stats)
	return nil
}

func runPreview(ctx context.Context, svc *market.Service, console ports.Reporter, pollID, sideArg, amountArg string) error {
	side, err := domain.ParseSide(sideArg)
	if err != nil {
		return err
	}
	amt, err := decimal.NewFromString(amountArg)
	if err != nil {
		return domain.Invalid("amount", "not a number")
	}
	poll, err := svc.Poll(ctx, pollID)
	if err != nil {
		return err
	}
	w, err := svc.PreviewStake(ctx, pollID, side, amt)
	if err != nil {
		return err
	}
	console.PrintPreview(poll, side, amt, w)
	return nil
}

func runUser(ctx context.Context, svc *market.Service, console ports.Reporter, userID string) error {
	bal, err := svc.Balance(ctx, userID)
	if err != nil {
		return err
	}
	stakes, err := svc.UserStakes(ctx, userID)
	if err != nil {
		return err
	}
	txs, err := svc.Transactions(ctx, userID)
	if err != nil {
		return err
	}
	console.PrintUserStakes(userID, bal, stakes)
	console.PrintTransactions(userID, txs)
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
