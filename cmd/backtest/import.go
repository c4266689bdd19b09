package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polyguard/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyguard/internal/adapters/storage"
	"github.com/alejandrodnm/polyguard/internal/domain"
	"github.com/alejandrodnm/polyguard/internal/ports"
)

// polymarketSource es lo que el import necesita del cliente de Polymarket.
type polymarketSource interface {
	ports.TradeSource
	ports.MarketSource
	ports.ResolutionSource
}

// importPolymarket copia trades, mercados y resoluciones de la ventana a
// SQLite. Los wallets se derivan de los trades importados.
func importPolymarket(ctx context.Context, src polymarketSource, store *storage.SQLiteStore, w domain.Window) error {
	trades, err := src.FetchTrades(ctx, w.Start, w.End)
	if err != nil {
		return fmt.Errorf("import: trades: %w", err)
	}
	if err := store.SaveTrades(ctx, trades); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := store.SaveWallets(ctx, polymarket.WalletsFromTrades(trades)); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	markets, err := src.FetchMarkets(ctx, w.Start, w.End)
	if err != nil {
		return fmt.Errorf("import: markets: %w", err)
	}
	if err := store.SaveMarkets(ctx, markets); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	resolutions, err := src.FetchResolutions(ctx, w.Start, w.End)
	if err != nil {
		return fmt.Errorf("import: resolutions: %w", err)
	}
	if err := store.SaveResolutions(ctx, resolutions); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	slog.Info("import complete",
		"trades", len(trades),
		"markets", len(markets),
		"resolutions", len(resolutions),
		"stored_trades", counts[domain.SourceTrades],
		"stored_wallets", counts[domain.SourceWallets],
		"stored_markets", counts[domain.SourceMarkets],
	)
	return nil
}
