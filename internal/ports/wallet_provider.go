package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// WalletSource obtiene la metadata de los wallets vistos hasta `to`.
type WalletSource interface {
	FetchWallets(ctx context.Context, from, to time.Time) ([]domain.Wallet, error)
}

// AlertSource obtiene las alertas históricas emitidas en [from, to).
type AlertSource interface {
	FetchAlerts(ctx context.Context, from, to time.Time) ([]domain.Alert, error)
}
