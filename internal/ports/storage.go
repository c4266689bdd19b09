package ports

import (
	"context"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// HistoryStore es el almacenamiento local de datos históricos. Sirve todas
// las fuentes del backtester y permite importar datos.
type HistoryStore interface {
	TradeSource
	MarketSource
	WalletSource
	ResolutionSource
	AlertSource

	SaveTrades(ctx context.Context, trades []domain.Trade) error
	SaveMarkets(ctx context.Context, markets []domain.Market) error
	SaveWallets(ctx context.Context, wallets []domain.Wallet) error
	SaveResolutions(ctx context.Context, resolutions []domain.Resolution) error
	SaveAlerts(ctx context.Context, alerts []domain.Alert) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
