package ports

import (
	"context"

	"github.com/alejandrodnm/predictx/internal/domain"
	"github.com/shopspring/decimal"
)

// Reporter presenta el estado del mercado al usuario.
type Reporter interface {
	// ReportPolls muestra los polls con su pool y estado.
	ReportPolls(ctx context.Context, polls []domain.Poll) error
	// ReportSettlement muestra el reparto de un poll liquidado.
	ReportSettlement(ctx context.Context, poll domain.Poll, s domain.Settlement, stakes []domain.Stake) error
	// PrintPreview muestra la proyección de un stake antes de confirmarlo.
	PrintPreview(poll domain.Poll, side domain.Side, amount decimal.Decimal, w domain.Winnings)
	PrintUserStakes(userID string, balance decimal.Decimal, us domain.UserStakes)
	PrintStats(s domain.PlatformStats)
	PrintTransactions(userID string, txs []domain.Transaction)
}
