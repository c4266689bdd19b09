package backtest

// framework.go: Run Manager del backtester.
//
// Cada backtest corre en su propia goroutine: carga el dataset vía la caché,
// lo parte en folds, simula los folds con paralelismo acotado y ensambla el
// reporte. El número de backtests activos está limitado; al superarlo se
// rechaza o se encola según Config.OnLimit.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polyguard/internal/domain"
	"github.com/alejandrodnm/polyguard/internal/ports"
	"github.com/alejandrodnm/polyguard/internal/strategy"
)

// EvaluatorResolver resuelve el evaluador de una estrategia.
type EvaluatorResolver interface {
	Resolve(cfg domain.StrategyConfig) (ports.StrategyEvaluator, error)
}

// Dependencies son los colaboradores externos del framework.
type Dependencies struct {
	Sources    Sources
	Evaluators EvaluatorResolver    // nil = strategy.NewDefaultRegistry()
	Recorder   Recorder             // nil = sin métricas
	Notifier   ports.ReportNotifier // opcional, recibe cada reporte completado
}

// Event es un cambio de estado o de progreso de un backtest.
type Event struct {
	BacktestID string
	Progress   domain.Progress
	Err        error
}

// Option configura un Framework.
type Option func(*Framework)

// WithEventHandler registra un callback para los eventos de progreso. Se
// llama de forma síncrona desde la goroutine del backtest: debe ser rápido.
func WithEventHandler(h func(Event)) Option {
	return func(f *Framework) { f.onEvent = h }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(f *Framework) {
		f.now = now
		f.cache.now = now
	}
}

// Framework orquesta backtests concurrentes sobre una caché compartida.
type Framework struct {
	cfgMu sync.RWMutex
	cfg   Config

	cache      *DatasetCache
	evaluators EvaluatorResolver
	notifier   ports.ReportNotifier
	recorder   Recorder
	slots      *slots
	onEvent    func(Event)
	now        func() time.Time

	runsMu sync.Mutex
	runs   map[string]*Run
	stats  domain.Statistics
}

// New crea un Framework. Los campos cero de cfg toman sus defaults.
func New(cfg Config, deps Dependencies, opts ...Option) (*Framework, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("backtest.New: %w", err)
	}
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	evaluators := deps.Evaluators
	if evaluators == nil {
		evaluators = strategy.NewDefaultRegistry()
	}

	f := &Framework{
		cfg:        cfg,
		cache:      NewDatasetCache(deps.Sources, cfg.CacheTTL, cfg.CacheMaxEntries, rec),
		evaluators: evaluators,
		notifier:   deps.Notifier,
		recorder:   rec,
		slots:      newSlots(cfg.MaxConcurrentBacktests),
		now:        time.Now,
		runs:       make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// RunBacktest envía el backtest y espera su reporte. Si ctx se cancela, el
// backtest se cancela y devuelve domain.ErrBacktestCancelled.
func (f *Framework) RunBacktest(ctx context.Context, cfg domain.BacktestConfig) (*domain.BacktestReport, error) {
	run, err := f.Submit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return run.Wait(context.WithoutCancel(ctx))
}

// Submit valida la configuración y arranca el backtest en segundo plano.
// ctx gobierna toda la vida del backtest: cancelarlo equivale a
// CancelBacktest. Los errores de configuración se devuelven aquí, antes de
// cargar ningún dato.
func (f *Framework) Submit(ctx context.Context, cfg domain.BacktestConfig) (*Run, error) {
	cfg = cfg.WithDefaults()
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	eval, err := f.prepare(cfg)
	if err != nil {
		f.runsMu.Lock()
		f.stats.TotalBacktests++
		f.stats.FailedBacktests++
		f.runsMu.Unlock()
		slog.Warn("backtest rejected", "backtest_id", cfg.ID, "err", err)
		f.emit(Event{
			BacktestID: cfg.ID,
			Progress:   domain.Progress{BacktestID: cfg.ID, Status: domain.StatusFailed, Error: err.Error(), UpdatedAt: f.now()},
			Err:        err,
		})
		return nil, fmt.Errorf("backtest.Submit: %w", err)
	}

	fcfg := f.GetConfig()

	f.runsMu.Lock()
	f.pruneLocked(fcfg.HandleRetention)
	if _, dup := f.runs[cfg.ID]; dup {
		f.stats.TotalBacktests++
		f.stats.FailedBacktests++
		f.runsMu.Unlock()
		return nil, fmt.Errorf("backtest.Submit: %w: duplicate backtest id %q", domain.ErrInvalidConfig, cfg.ID)
	}
	queued := false
	if !f.slots.tryAcquire() {
		if fcfg.OnLimit == LimitReject {
			f.stats.TotalBacktests++
			f.stats.RejectedBacktests++
			f.runsMu.Unlock()
			slog.Warn("backtest rejected: concurrency limit",
				"backtest_id", cfg.ID,
				"max_concurrent", fcfg.MaxConcurrentBacktests,
			)
			return nil, fmt.Errorf("backtest.Submit: %w (max %d)", domain.ErrConcurrencyLimit, fcfg.MaxConcurrentBacktests)
		}
		queued = true
	}
	run := newRun(ctx, cfg, f.now(), f.releaseRun)
	f.runs[cfg.ID] = run
	f.stats.TotalBacktests++
	f.runsMu.Unlock()

	if !queued {
		f.recorder.ActiveBacktests(f.slots.inUse())
	}
	go f.execute(run, eval, queued)
	return run, nil
}

// prepare valida la configuración y resuelve el evaluador.
func (f *Framework) prepare(cfg domain.BacktestConfig) (ports.StrategyEvaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eval, err := f.evaluators.Resolve(cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return eval, nil
}

func (f *Framework) execute(r *Run, eval ports.StrategyEvaluator, queued bool) {
	if queued {
		slog.Info("backtest queued", "backtest_id", r.id, "waiting", f.slots.queued()+1)
		if err := f.slots.acquire(r.ctx); err != nil {
			f.finish(r, nil, domain.ErrBacktestCancelled)
			return
		}
		f.recorder.ActiveBacktests(f.slots.inUse())
	}

	report, err := f.run(r, eval)

	// El slot se libera antes de marcar el run como terminado: quien espera
	// en Wait puede enviar otro backtest en cuanto vuelve.
	f.slots.release()
	f.recorder.ActiveBacktests(f.slots.inUse())
	f.finish(r, report, err)
}

func (f *Framework) run(r *Run, eval ports.StrategyEvaluator) (*domain.BacktestReport, error) {
	cfg := r.cfg
	fcfg := f.GetConfig()
	started := f.now()

	if r.cancelled() {
		return nil, domain.ErrBacktestCancelled
	}
	slog.Info("backtest started",
		"backtest_id", r.id,
		"name", cfg.Name,
		"strategy", cfg.Strategy.EvaluatorName(),
		"method", cfg.Method,
		"start", cfg.Start,
		"end", cfg.End,
	)
	f.step(r, func(now time.Time) domain.Progress { return r.advance(domain.StatusLoadingData, progressLoading, now) })

	ds, info, err := f.cache.Load(r.ctx, LoadRequest{
		RequestID:   r.id,
		Sources:     cfg.Sources,
		Start:       cfg.Start,
		End:         cfg.End,
		BypassCache: cfg.BypassCache,
	})
	if r.cancelled() {
		return nil, domain.ErrBacktestCancelled
	}
	if err != nil {
		return nil, fmt.Errorf("backtest.run: load dataset: %w", err)
	}
	if ds.AllFailed() {
		return nil, fmt.Errorf("backtest.run: load dataset: %w: sources %v failed", domain.ErrDatasetUnavailable, ds.Failed())
	}
	if ds.Degraded() {
		slog.Warn("backtest running on degraded dataset",
			"backtest_id", r.id,
			"failed", ds.Failed(),
			"quality", ds.Quality(),
		)
	}

	folds, err := Split(cfg.Window(), cfg.Method, SplitParamsFor(cfg, fcfg.MaxLeaveOneOutFolds))
	if err != nil {
		return nil, fmt.Errorf("backtest.run: split: %w", err)
	}
	f.step(r, func(now time.Time) domain.Progress { return r.startFolds(len(folds), now) })

	sim := NewSimulator(fcfg.Labels, f.recorder)
	sims := make([]FoldSimulation, len(folds))

	g, gctx := errgroup.WithContext(r.ctx)
	g.SetLimit(fcfg.FoldParallelism)
	for i, fold := range folds {
		g.Go(func() error {
			if r.cancelled() || gctx.Err() != nil {
				return domain.ErrBacktestCancelled
			}
			res, err := sim.Run(gctx, ds, fold, cfg.Strategy, eval)
			if err != nil {
				return err
			}
			sims[i] = res
			slog.Debug("fold simulated",
				"backtest_id", r.id,
				"fold", fold.Index,
				"units", res.Units,
				"evaluator_failures", res.EvaluatorFailures,
			)
			f.step(r, r.foldDone)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if r.cancelled() {
			return nil, domain.ErrBacktestCancelled
		}
		return nil, fmt.Errorf("backtest.run: simulate folds: %w", err)
	}
	if r.cancelled() {
		return nil, domain.ErrBacktestCancelled
	}

	f.step(r, func(now time.Time) domain.Progress { return r.advance(domain.StatusRunning, progressAssembling, now) })
	return Assemble(AssembleInput{
		BacktestID:     r.id,
		Config:         cfg,
		Dataset:        ds,
		Simulations:    sims,
		FoldsRequested: RequestedFolds(cfg),
		Load:           info,
		Cache:          f.cache.Stats(),
		StartedAt:      started,
		CompletedAt:    f.now(),
	}), nil
}

func (f *Framework) finish(r *Run, report *domain.BacktestReport, err error) {
	// Tras complete el estado es terminal y CancelBacktest ya no puede
	// convertir un reporte notificado en CANCELLED.
	p, err := r.complete(report, err, f.now())
	if p.Status == domain.StatusCompleted && f.notifier != nil {
		if nerr := f.notifier.NotifyReport(context.WithoutCancel(r.ctx), report); nerr != nil {
			slog.Warn("notifier error", "backtest_id", r.id, "err", nerr)
		}
	}
	elapsed := p.UpdatedAt.Sub(r.submittedAt)

	f.runsMu.Lock()
	switch p.Status {
	case domain.StatusCompleted:
		f.stats.CompletedBacktests++
	case domain.StatusCancelled:
		f.stats.CancelledBacktests++
	default:
		f.stats.FailedBacktests++
	}
	f.runsMu.Unlock()
	f.recorder.BacktestFinished(r.cfg.Method, p.Status, elapsed)

	switch p.Status {
	case domain.StatusCompleted:
		slog.Info("backtest completed",
			"backtest_id", r.id,
			"tier", report.Tier,
			"score", fmt.Sprintf("%.1f", report.Score),
			"f1", fmt.Sprintf("%.3f", report.Metrics.F1),
			"folds", len(report.Folds),
			"duration", report.Duration.Round(time.Millisecond),
		)
	case domain.StatusCancelled:
		slog.Info("backtest cancelled", "backtest_id", r.id)
	default:
		slog.Error("backtest failed", "backtest_id", r.id, "err", err)
	}
	f.emit(Event{BacktestID: r.id, Progress: p, Err: err})
	r.markDone()
}

func statusFor(err error) domain.RunStatus {
	switch {
	case err == nil:
		return domain.StatusCompleted
	case errors.Is(err, domain.ErrBacktestCancelled):
		return domain.StatusCancelled
	default:
		return domain.StatusFailed
	}
}

// step aplica un cambio de progreso y emite su evento. Ambos ocurren bajo
// el mismo lock para que los eventos de folds paralelos salgan en orden.
func (f *Framework) step(r *Run, update func(now time.Time) domain.Progress) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	p := update(f.now())
	slog.Debug("backtest progress",
		"backtest_id", r.id,
		"status", p.Status,
		"fraction", fmt.Sprintf("%.2f", p.Fraction),
	)
	f.emit(Event{BacktestID: r.id, Progress: p})
}

func (f *Framework) emit(e Event) {
	if f.onEvent != nil {
		f.onEvent(e)
	}
}

// CancelBacktest pide la cancelación de un backtest. Devuelve true solo si
// el backtest seguía activo (o encolado) y ahora está marcado como cancelado.
func (f *Framework) CancelBacktest(id string) bool {
	f.runsMu.Lock()
	r, ok := f.runs[id]
	f.runsMu.Unlock()
	if !ok {
		return false
	}
	if !r.requestCancel() {
		return false
	}
	slog.Info("backtest cancel requested", "backtest_id", id)
	return true
}

// GetBacktestProgress devuelve el progreso de un handle vivo. ok es false
// para IDs desconocidos o ya liberados.
func (f *Framework) GetBacktestProgress(id string) (domain.Progress, bool) {
	f.runsMu.Lock()
	r, ok := f.runs[id]
	f.runsMu.Unlock()
	if !ok {
		return domain.Progress{}, false
	}
	return r.Progress(), true
}

// Wait espera el backtest id y libera su handle, igual que Run.Wait.
// Devuelve domain.ErrUnknownBacktest si el ID no existe o ya se liberó.
func (f *Framework) Wait(ctx context.Context, id string) (*domain.BacktestReport, error) {
	f.runsMu.Lock()
	r, ok := f.runs[id]
	f.runsMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("backtest.Wait: %w: %q", domain.ErrUnknownBacktest, id)
	}
	return r.Wait(ctx)
}

// GetStatistics devuelve los contadores globales.
func (f *Framework) GetStatistics() domain.Statistics {
	f.runsMu.Lock()
	s := f.stats
	f.runsMu.Unlock()
	s.ActiveBacktests = f.slots.inUse()
	return s
}

// CacheStats devuelve los contadores de la caché de datasets.
func (f *Framework) CacheStats() CacheStats {
	return f.cache.Stats()
}

// ClearCache vacía la caché de datasets. Los backtests en curso no se ven
// afectados: ya tienen su dataset.
func (f *Framework) ClearCache() {
	f.cache.Clear()
	slog.Info("dataset cache cleared")
}

// GetConfig devuelve la configuración actual.
func (f *Framework) GetConfig() Config {
	f.cfgMu.RLock()
	defer f.cfgMu.RUnlock()
	return f.cfg
}

// UpdateConfig aplica un cambio parcial. Los backtests ya arrancados
// conservan la configuración con la que empezaron.
func (f *Framework) UpdateConfig(p ConfigPatch) error {
	f.cfgMu.Lock()
	next := p.apply(f.cfg)
	if err := next.validate(); err != nil {
		f.cfgMu.Unlock()
		return fmt.Errorf("backtest.UpdateConfig: %w", err)
	}
	f.cfg = next
	f.cfgMu.Unlock()

	f.cache.SetLimits(next.CacheTTL, next.CacheMaxEntries)
	f.slots.setLimit(next.MaxConcurrentBacktests)
	slog.Info("backtest config updated",
		"max_concurrent", next.MaxConcurrentBacktests,
		"on_limit", next.OnLimit,
		"fold_parallelism", next.FoldParallelism,
	)
	return nil
}

// releaseRun quita el handle del mapa si sigue siendo el mismo run.
func (f *Framework) releaseRun(r *Run) {
	f.runsMu.Lock()
	defer f.runsMu.Unlock()
	if cur, ok := f.runs[r.id]; ok && cur == r {
		delete(f.runs, r.id)
	}
}

// pruneLocked descarta handles terminados que nadie esperó.
func (f *Framework) pruneLocked(retention time.Duration) {
	now := f.now()
	for id, r := range f.runs {
		if r.expired(now, retention) {
			delete(f.runs, id)
		}
	}
}
