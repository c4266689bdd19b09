package ports

import (
	"context"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// ReportNotifier presenta un reporte de backtest al usuario.
type ReportNotifier interface {
	// NotifyReport muestra el reporte. En la implementación de consola,
	// imprime tablas formateadas según el nivel de detalle.
	NotifyReport(ctx context.Context, report *domain.BacktestReport) error
}
