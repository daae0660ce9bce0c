package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/alejandrodnm/predictx/internal/ports"
	"github.com/shopspring/decimal"
)

// Config contiene las reglas económicas del mercado.
type Config struct {
	FeeRate               decimal.Decimal // fee de plataforma (0 = domain.DefaultFeeRate)
	MinStake              decimal.Decimal // stake mínimo (0 = 1)
	ExclusiveSide         bool            // un usuario no puede apostar a ambos lados del mismo poll
	DefaultEligibleVoters int             // comunidad elegible si el poll no la define
	AdvanceWorkers        int             // goroutines de Advance (0 = NumCPU)
}

// Service orquesta stakes, votos, resolución y liquidación.
// Todas las dependencias se inyectan; no hay estado global.
type Service struct {
	cfg   Config
	store ports.Store // también dueño de los saldos
	chain ports.TxSubmitter
	clock ports.Clock

	polls keyedMutex // serializa stake/voto/liquidación por poll
	users keyedMutex // serializa check-then-debit por usuario
}

// New crea el servicio con todas las dependencias inyectadas.
func New(
	cfg Config,
	store ports.Store,
	chain ports.TxSubmitter,
	clock ports.Clock,
) *Service {
	if !cfg.FeeRate.IsPositive() {
		cfg.FeeRate = domain.DefaultFeeRate
	}
	if !cfg.MinStake.IsPositive() {
		cfg.MinStake = decimal.NewFromInt(1)
	}
	if cfg.DefaultEligibleVoters <= 0 {
		cfg.DefaultEligibleVoters = 100
	}
	return &Service{
		cfg:   cfg,
		store: store,
		chain: chain,
		clock: clock,
	}
}

// FeeRate devuelve el fee de plataforma efectivo.
func (s *Service) FeeRate() decimal.Decimal {
	return s.cfg.FeeRate
}

// Deposit acredita fondos externos al saldo del usuario (faucet / on-ramp).
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, domain.Invalid("user", "required")
	}
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}

	unlock := s.users.Lock(userID)
	defer unlock()

	bal, err := s.store.Adjust(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market.Deposit: %w", err)
	}
	slog.Debug("balance deposit", "user_id", userID, "amount", amount, "balance", bal)
	return bal, nil
}

// Balance devuelve el saldo actual del usuario.
func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	bal, err := s.store.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("market.Balance: %w", err)
	}
	return bal, nil
}

// validateAmount exige un importe positivo con a lo sumo dos decimales.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.Invalid("amount", "must be positive")
	}
	if !amount.Equal(amount.Truncate(domain.MoneyPlaces)) {
		return domain.Invalid("amount", "must have at most 2 decimal places")
	}
	return nil
}

// saveTx guarda el recibo de una transacción. Un fallo aquí no deshace la
// operación: el estado del mercado ya quedó confirmado.
func (s *Service) saveTx(ctx context.Context, tx domain.Transaction) {
	if err := s.store.SaveTransaction(ctx, tx); err != nil {
		slog.Warn("transaction receipt not saved", "tx_id", tx.ID, "kind", tx.Kind, "err", err)
	}
}

// keyedMutex es un mutex por clave. Las entradas se liberan cuando nadie las usa.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock bloquea la clave y devuelve la función que la libera.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
