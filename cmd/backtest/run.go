package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alejandrodnm/polyguard/internal/application/backtest"
	"github.com/alejandrodnm/polyguard/internal/domain"
)

// runBacktest envía el backtest y espera el reporte. El notifier del
// framework ya imprime el reporte al completarse.
func runBacktest(ctx context.Context, fw *backtest.Framework, req domain.BacktestConfig) error {
	run, err := fw.Submit(ctx, req)
	if err != nil {
		slog.Error("backtest rejected", "err", err)
		return err
	}
	slog.Info("backtest submitted", "backtest_id", run.ID(), "strategy", req.Strategy.Type, "method", req.Method)

	// ctx (SIGINT) ya gobierna el run: Wait no debe cortarse antes de que
	// el framework registre la cancelación.
	report, err := fw.Wait(context.Background(), run.ID())
	switch {
	case errors.Is(err, domain.ErrBacktestCancelled):
		slog.Warn("backtest cancelled", "backtest_id", run.ID())
		return err
	case err != nil:
		slog.Error("backtest failed", "backtest_id", run.ID(), "err", err)
		return err
	}

	stats := fw.GetStatistics()
	cache := fw.CacheStats()
	slog.Info("backtest complete",
		"backtest_id", run.ID(),
		"tier", report.Tier,
		"score", report.Score,
		"f1", report.Metrics.F1,
		"duration", report.Duration,
		"total_backtests", stats.TotalBacktests,
		"cache_hits", cache.Hits,
		"cache_misses", cache.Misses,
	)
	return nil
}

// logEvent registra el avance de cada backtest.
func logEvent(e backtest.Event) {
	p := e.Progress
	if e.Err != nil {
		slog.Debug("backtest event", "backtest_id", e.BacktestID, "status", p.Status, "err", e.Err)
		return
	}
	slog.Debug("backtest progress",
		"backtest_id", e.BacktestID,
		"status", p.Status,
		"fraction", p.Fraction,
		"folds", p.FoldsCompleted,
		"folds_total", p.FoldsTotal,
	)
}
