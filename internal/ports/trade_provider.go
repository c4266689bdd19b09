package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// TradeSource obtiene trades históricos en una ventana [from, to).
type TradeSource interface {
	FetchTrades(ctx context.Context, from, to time.Time) ([]domain.Trade, error)
}
