package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceStore es el saldo mutable por usuario.
type BalanceStore interface {
	// Balance devuelve el saldo actual (0 si el usuario no existe).
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	// Adjust suma delta al saldo de forma atómica y devuelve el nuevo saldo.
	// Devuelve domain.ErrInsufficientBalance si el resultado quedaría negativo.
	Adjust(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error)
}
