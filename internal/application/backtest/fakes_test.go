package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
	"github.com/alejandrodnm/polyguard/internal/ports"
	"github.com/alejandrodnm/polyguard/internal/strategy"
)

var base = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(days float64) time.Time {
	return base.Add(time.Duration(days * float64(24*time.Hour)))
}

func window(fromDays, toDays float64) domain.Window {
	return domain.Window{Start: at(fromDays), End: at(toDays)}
}

// fakeHistory es un proveedor en memoria de las cinco fuentes.
// Si gate no es nil, FetchTrades bloquea hasta que se cierre.
type fakeHistory struct {
	mu          sync.Mutex
	trades      []domain.Trade
	markets     []domain.Market
	wallets     []domain.Wallet
	resolutions []domain.Resolution
	alerts      []domain.Alert
	fail        map[domain.DataSourceKind]error

	gate        chan struct{}
	started     chan struct{} // recibe una señal por cada FetchTrades que entra
	tradeCalls  atomic.Int64
	marketCalls atomic.Int64
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{fail: make(map[domain.DataSourceKind]error)}
}

func (f *fakeHistory) sources() Sources {
	return Sources{Trades: f, Markets: f, Wallets: f, Resolutions: f, Alerts: f}
}

func (f *fakeHistory) failing(kind domain.DataSourceKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[kind]
}

func (f *fakeHistory) FetchTrades(ctx context.Context, from, to time.Time) ([]domain.Trade, error) {
	f.tradeCalls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.failing(domain.SourceTrades); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Trade
	for _, t := range f.trades {
		if !t.Timestamp.Before(from) && t.Timestamp.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeHistory) FetchMarkets(_ context.Context, _, _ time.Time) ([]domain.Market, error) {
	f.marketCalls.Add(1)
	if err := f.failing(domain.SourceMarkets); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Market(nil), f.markets...), nil
}

func (f *fakeHistory) FetchWallets(_ context.Context, _, _ time.Time) ([]domain.Wallet, error) {
	if err := f.failing(domain.SourceWallets); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Wallet(nil), f.wallets...), nil
}

func (f *fakeHistory) FetchResolutions(_ context.Context, _, _ time.Time) ([]domain.Resolution, error) {
	if err := f.failing(domain.SourceResolutions); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Resolution(nil), f.resolutions...), nil
}

func (f *fakeHistory) FetchAlerts(_ context.Context, _, _ time.Time) ([]domain.Alert, error) {
	if err := f.failing(domain.SourceAlerts); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Alert(nil), f.alerts...), nil
}

var errSourceDown = errors.New("source down")

func trade(market, wallet, outcome string, price, size float64, ts time.Time) domain.Trade {
	return domain.Trade{
		ID:        fmt.Sprintf("%s-%s-%d", market, wallet, ts.UnixNano()),
		MarketID:  market,
		Wallet:    wallet,
		Side:      "BUY",
		Outcome:   outcome,
		Price:     price,
		Size:      size,
		Timestamp: ts,
	}
}

// seededHistory genera 10 días de actividad en dos mercados: un wallet
// "insider" marcado que compra fuerte el outcome ganador cada día y dos
// wallets normales con trades pequeños.
func seededHistory() *fakeHistory {
	h := newFakeHistory()
	for d := 0; d < 10; d++ {
		day := at(float64(d))
		h.trades = append(h.trades,
			trade("m1", "0xInsider", "Yes", 0.5, 40_000, day.Add(2*time.Hour)),
			trade("m1", "0xretail1", "No", 0.4, 50, day.Add(3*time.Hour)),
			trade("m2", "0xretail2", "Yes", 0.6, 80, day.Add(4*time.Hour)),
		)
	}
	h.markets = []domain.Market{
		{ConditionID: "m1", Question: "Will A happen?", CreatedAt: at(-30), EndDate: at(12), Closed: true},
		{ConditionID: "m2", Question: "Will B happen?", CreatedAt: at(-30), EndDate: at(40)},
	}
	h.wallets = []domain.Wallet{
		{Address: "0xinsider", FirstSeen: at(-1), Flagged: true},
		{Address: "0xretail1", FirstSeen: at(-400), TradeCount: 300},
		{Address: "0xretail2", FirstSeen: at(-400), TradeCount: 120},
	}
	h.resolutions = []domain.Resolution{{MarketID: "m1", WinningOutcome: "Yes", ResolvedAt: at(12)}}
	return h
}

// customRegistry registra fn como evaluador CUSTOM "test".
func customRegistry(fn ports.EvaluatorFunc) *strategy.Registry {
	r := strategy.NewRegistry()
	r.RegisterFunc("test", fn)
	return r
}

func customStrategy() domain.StrategyConfig {
	return domain.StrategyConfig{Type: domain.StrategyCustom, CustomName: "test"}
}

// bigTradeEvaluator marca como positiva cualquier unidad con más de $1000.
func bigTradeEvaluator(_ context.Context, u domain.DataUnit, _ domain.Thresholds) (domain.Prediction, error) {
	v := u.TotalValueUSD()
	if v > 1000 {
		return domain.Prediction{Positive: true, Confidence: 0.9, SuspicionScore: 90}, nil
	}
	return domain.Prediction{Confidence: v / 1000}, nil
}

// recordingRecorder cuenta llamadas al Recorder.
type recordingRecorder struct {
	mu              sync.Mutex
	hits, misses    int
	evictions       int
	sourceErrors    int
	evaluatorErrors int
	finished        []domain.RunStatus
	maxActive       int
}

func (r *recordingRecorder) CacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *recordingRecorder) CacheEviction() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions++
}

func (r *recordingRecorder) SourceFetched(_ domain.DataSourceKind, _ int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.sourceErrors++
	}
}

func (r *recordingRecorder) EvaluatorFailure(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluatorErrors++
}

func (r *recordingRecorder) BacktestFinished(_ domain.ValidationMethod, s domain.RunStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
}

func (r *recordingRecorder) ActiveBacktests(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxActive = max(r.maxActive, n)
}
