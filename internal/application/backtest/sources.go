package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polyguard/internal/domain"
	"github.com/alejandrodnm/polyguard/internal/ports"
)

// Sources agrupa los proveedores de datos históricos. Cualquiera puede ser
// nil: pedir una fuente sin proveedor cuenta como fuente fallida.
type Sources struct {
	Trades      ports.TradeSource
	Markets     ports.MarketSource
	Wallets     ports.WalletSource
	Resolutions ports.ResolutionSource
	Alerts      ports.AlertSource
}

// SourcesFromStore usa un mismo HistoryStore para las cinco fuentes.
func SourcesFromStore(s ports.HistoryStore) Sources {
	return Sources{Trades: s, Markets: s, Wallets: s, Resolutions: s, Alerts: s}
}

// fetchDataset pide cada fuente en paralelo y construye el dataset. Una fuente
// que falla no aborta la carga: queda marcada en Failed y el dataset sale
// degradado.
func fetchDataset(ctx context.Context, src Sources, kinds []domain.DataSourceKind, w domain.Window, rec Recorder, now time.Time) *domain.HistoricalDataset {
	parts := domain.DatasetParts{Window: w, Sources: kinds, LoadedAt: now}
	failed := make([]bool, len(kinds))

	// Cada goroutine escribe solo su propio campo de parts y su índice de failed.
	var g errgroup.Group
	for i, kind := range kinds {
		g.Go(func() error {
			rows, err := fetchSource(ctx, src, kind, w, &parts)
			rec.SourceFetched(kind, rows, err)
			if err != nil {
				slog.Warn("data source failed",
					"source", kind,
					"start", w.Start,
					"end", w.End,
					"err", err,
				)
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, kind := range kinds {
		if failed[i] {
			parts.Failed = append(parts.Failed, kind)
		}
	}
	return domain.NewHistoricalDataset(parts)
}

func fetchSource(ctx context.Context, src Sources, kind domain.DataSourceKind, w domain.Window, parts *domain.DatasetParts) (int, error) {
	switch kind {
	case domain.SourceTrades:
		if src.Trades == nil {
			return 0, errNoProvider(kind)
		}
		trades, err := src.Trades.FetchTrades(ctx, w.Start, w.End)
		if err != nil {
			return 0, err
		}
		parts.Trades = trades
		return len(trades), nil
	case domain.SourceMarkets:
		if src.Markets == nil {
			return 0, errNoProvider(kind)
		}
		markets, err := src.Markets.FetchMarkets(ctx, w.Start, w.End)
		if err != nil {
			return 0, err
		}
		parts.Markets = markets
		return len(markets), nil
	case domain.SourceWallets:
		if src.Wallets == nil {
			return 0, errNoProvider(kind)
		}
		wallets, err := src.Wallets.FetchWallets(ctx, w.Start, w.End)
		if err != nil {
			return 0, err
		}
		parts.Wallets = wallets
		return len(wallets), nil
	case domain.SourceResolutions:
		if src.Resolutions == nil {
			return 0, errNoProvider(kind)
		}
		res, err := src.Resolutions.FetchResolutions(ctx, w.Start, w.End)
		if err != nil {
			return 0, err
		}
		parts.Resolutions = res
		return len(res), nil
	case domain.SourceAlerts:
		if src.Alerts == nil {
			return 0, errNoProvider(kind)
		}
		alerts, err := src.Alerts.FetchAlerts(ctx, w.Start, w.End)
		if err != nil {
			return 0, err
		}
		parts.Alerts = alerts
		return len(alerts), nil
	}
	return 0, fmt.Errorf("backtest.fetchSource: unknown source %q", kind)
}

func errNoProvider(kind domain.DataSourceKind) error {
	return fmt.Errorf("backtest.fetchSource: no provider configured for %s", kind)
}
