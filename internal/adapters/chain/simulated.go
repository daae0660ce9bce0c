package chain

// simulated.go: red simulada para las transacciones de la plataforma.
//
// No hay blockchain real: cada Submit espera su turno en un rate limiter
// (throughput de confirmaciones), duerme el delay configurado y consulta el
// FaultInjector para simular rechazos de la red. Los reintentos viven aquí,
// no en el servicio: el core nunca reintenta.

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/predictx/internal/adapters/fault"
	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/alejandrodnm/predictx/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	defaultTxPerSec = 50
	defaultBurst    = 10
	baseRetryWait   = 50 * time.Millisecond
	firstLedger     = 1_000_000
)

// BaseFee es el fee de red por operación (100 stroops = 0.00001 XLM).
var BaseFee = decimal.New(1, -5)

// Config controla la red simulada.
type Config struct {
	TxPerSec     float64       // confirmaciones por segundo (0 = default)
	Burst        int           // ráfaga del limiter (0 = default)
	ConfirmDelay time.Duration // latencia artificial por intento
	MaxRetries   int           // reintentos tras un fallo simulado
}

// Simulated implementa ports.TxSubmitter.
type Simulated struct {
	cfg     Config
	faults  ports.FaultInjector
	clock   ports.Clock
	limiter *rate.Limiter
	ledger  atomic.Int64
}

// NewSimulated crea la red simulada. faults nil equivale a fault.Never.
func NewSimulated(cfg Config, faults ports.FaultInjector, clock ports.Clock) *Simulated {
	if cfg.TxPerSec <= 0 {
		cfg.TxPerSec = defaultTxPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if faults == nil {
		faults = fault.Never{}
	}
	s := &Simulated{
		cfg:     cfg,
		faults:  faults,
		clock:   clock,
		limiter: rate.NewLimiter(rate.Limit(cfg.TxPerSec), cfg.Burst),
	}
	s.ledger.Store(firstLedger)
	return s
}

// Submit envía la transacción con reintentos y backoff exponencial.
func (s *Simulated) Submit(ctx context.Context, req domain.TxRequest) (domain.Transaction, error) {
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return domain.Transaction{}, fmt.Errorf("chain.Submit: rate limiter: %w", err)
		}
		if s.cfg.ConfirmDelay > 0 {
			select {
			case <-time.After(s.cfg.ConfirmDelay):
			case <-ctx.Done():
				return domain.Transaction{}, fmt.Errorf("chain.Submit: %w", ctx.Err())
			}
		}

		if s.faults.ShouldFail() {
			slog.Warn("simulated network rejected transaction",
				"kind", req.Kind,
				"user_id", req.UserID,
				"attempt", attempt+1,
			)
			if attempt < s.cfg.MaxRetries {
				s.sleep(ctx, attempt)
			}
			continue
		}

		id := uuid.New()
		return domain.Transaction{
			ID:          id.String(),
			Hash:        txHash(id, req),
			Kind:        req.Kind,
			UserID:      req.UserID,
			Amount:      req.Amount,
			Fee:         BaseFee,
			Status:      domain.TxConfirmed,
			Ledger:      s.ledger.Add(1),
			Description: req.Description,
			SubmittedAt: s.clock.Now(),
		}, nil
	}
	return domain.Transaction{}, fmt.Errorf("chain.Submit: %s after %d attempts: %w",
		req.Kind, s.cfg.MaxRetries+1, domain.ErrTxFailed)
}

// txHash deriva un hash de 64 hex a partir del id y el contenido.
func txHash(id uuid.UUID, req domain.TxRequest) string {
	h := sha256.New()
	h.Write(id[:])
	fmt.Fprintf(h, "%s|%s|%s", req.Kind, req.UserID, req.Amount.String())
	return hex.EncodeToString(h.Sum(nil))
}

// sleep espera con backoff exponencial, respetando el contexto.
func (s *Simulated) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
