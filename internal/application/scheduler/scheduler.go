package scheduler

// scheduler.go: dispara Advance periódicamente con robfig/cron.
//
// Las transiciones por tiempo (lock, ventanas de voto y disputa, liquidación)
// no ocurren solas: alguien tiene que mirar el reloj. Un tick que todavía
// corre cuando llega el siguiente se salta, nunca se solapan.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/predictx/internal/application/market"
	"github.com/robfig/cron/v3"
)

// DefaultSpec revisa los polls cada 30 segundos.
const DefaultSpec = "@every 30s"

// Advancer es lo que el scheduler necesita del servicio de mercado.
type Advancer interface {
	Advance(ctx context.Context) (market.AdvanceReport, error)
}

// Scheduler ejecuta Advance según una expresión cron (con segundos).
type Scheduler struct {
	spec     string
	advancer Advancer
	cron     *cron.Cron
}

// New valida la expresión y crea el scheduler. spec vacío usa DefaultSpec.
func New(spec string, advancer Advancer) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	logger := slogLogger{}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	).Parse(spec); err != nil {
		return nil, fmt.Errorf("scheduler.New: parse %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, advancer: advancer, cron: c}, nil
}

// Run registra el job, arranca el cron y bloquea hasta que ctx se cancele.
// Hace un primer Advance inmediato para no esperar al primer tick.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("scheduler.Run: %w", err)
	}

	slog.Info("scheduler starting", "spec", s.spec)
	s.Tick(ctx)
	s.cron.Start()

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	slog.Info("scheduler stopped")
	return nil
}

// Tick ejecuta un ciclo de Advance y loguea el resultado.
func (s *Scheduler) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.advancer.Advance(ctx)
	if err != nil {
		slog.Error("advance cycle failed", "err", err)
		return
	}
	if report.Failed > 0 {
		slog.Warn("advance cycle had failures", "failed", report.Failed)
	}
}

// slogLogger adapta cron.Logger a log/slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
