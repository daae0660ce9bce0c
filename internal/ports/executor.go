package ports

import (
	"context"

	"github.com/alejandrodnm/predictx/internal/domain"
)

// TxSubmitter envía transacciones a la red (simulada) y espera confirmación.
type TxSubmitter interface {
	// Submit devuelve domain.ErrTxFailed si la red rechaza la transacción.
	// Un fallo nunca deja efectos: el caller no debe mutar estado.
	Submit(ctx context.Context, tx domain.TxRequest) (domain.Transaction, error)
}

// FaultInjector decide si la próxima operación simulada debe fallar.
type FaultInjector interface {
	ShouldFail() bool
}
