package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyguard/internal/adapters/storage"
	"github.com/alejandrodnm/polyguard/internal/domain"
)

var now = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("", "", 10, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-10*24*time.Hour), w.Start)
	assert.Equal(t, now, w.End)

	w, err = parseWindow("2024-06-01", "2024-06-15T00:00:00Z", 0, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, 14, w.DayUnits())

	_, err = parseWindow("2024-06-15", "2024-06-01", 0, now)
	assert.Error(t, err)
	_, err = parseWindow("yesterday", "", 0, now)
	assert.Error(t, err)
	_, err = parseWindow("", "", 0, now)
	assert.Error(t, err)
}

func TestParseThresholds(t *testing.T) {
	th, err := parseThresholds("min_trade_usd=5000, min_score=0.5")
	require.NoError(t, err)
	assert.Equal(t, domain.Thresholds{"min_trade_usd": 5000, "min_score": 0.5}, th)

	th, err = parseThresholds("")
	require.NoError(t, err)
	assert.Empty(t, th)

	_, err = parseThresholds("min_score")
	assert.Error(t, err)
	_, err = parseThresholds("min_score=high")
	assert.Error(t, err)
}

func TestParseSources(t *testing.T) {
	kinds, err := parseSources("wallets, TRADES,trades")
	require.NoError(t, err)
	assert.Equal(t, []domain.DataSourceKind{domain.SourceTrades, domain.SourceWallets}, kinds)

	kinds, err = parseSources("")
	require.NoError(t, err)
	assert.Nil(t, kinds)

	_, err = parseSources("TRADES,ORDERS")
	assert.Error(t, err)
}

func TestBuildRequest(t *testing.T) {
	w := domain.Window{Start: now.Add(-72 * time.Hour), End: now}
	req := buildRequest(requestFlags{
		strategy: "whale_detection",
		window:   w,
		method:   "k_fold_cv",
		folds:    3,
		detail:   "debug",
	})
	assert.Equal(t, domain.StrategyWhale, req.Strategy.Type)
	assert.Equal(t, domain.ValidationKFold, req.Method)
	assert.Equal(t, domain.DetailDebug, req.Detail)
	require.NoError(t, req.WithDefaults().Validate())

	custom := buildRequest(requestFlags{strategy: "my-evaluator", window: w, method: "NONE", detail: "SUMMARY"})
	assert.Equal(t, domain.StrategyCustom, custom.Strategy.Type)
	assert.Equal(t, "my-evaluator", custom.Strategy.CustomName)
}

type fakePolymarket struct {
	trades      []domain.Trade
	markets     []domain.Market
	resolutions []domain.Resolution
	failMarkets bool
}

func (f *fakePolymarket) FetchTrades(context.Context, time.Time, time.Time) ([]domain.Trade, error) {
	return f.trades, nil
}

func (f *fakePolymarket) FetchMarkets(context.Context, time.Time, time.Time) ([]domain.Market, error) {
	if f.failMarkets {
		return nil, errors.New("gamma down")
	}
	return f.markets, nil
}

func (f *fakePolymarket) FetchResolutions(context.Context, time.Time, time.Time) ([]domain.Resolution, error) {
	return f.resolutions, nil
}

func TestImportPolymarket(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	w := domain.Window{Start: now.Add(-48 * time.Hour), End: now}
	src := &fakePolymarket{
		trades: []domain.Trade{
			{ID: "t1", MarketID: "0xm", Wallet: "0xa", Side: "BUY", Outcome: "Yes", Price: 0.5, Size: 10, Timestamp: now.Add(-time.Hour)},
			{ID: "t2", MarketID: "0xm", Wallet: "0xb", Side: "BUY", Outcome: "No", Price: 0.5, Size: 10, Timestamp: now.Add(-2 * time.Hour)},
		},
		markets:     []domain.Market{{ConditionID: "0xm", Question: "q?", CreatedAt: now.Add(-96 * time.Hour)}},
		resolutions: []domain.Resolution{{MarketID: "0xm", WinningOutcome: "Yes", ResolvedAt: now}},
	}

	ctx := context.Background()
	require.NoError(t, importPolymarket(ctx, src, store, w))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.SourceTrades])
	assert.Equal(t, 2, counts[domain.SourceWallets])
	assert.Equal(t, 1, counts[domain.SourceMarkets])
	assert.Equal(t, 1, counts[domain.SourceResolutions])

	src.failMarkets = true
	err = importPolymarket(ctx, src, store, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markets")
}
