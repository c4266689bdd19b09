package backtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Run es el handle de un backtest enviado al Framework.
type Run struct {
	id     string
	cfg    domain.BacktestConfig
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	cancelRequested atomic.Bool
	release         func(*Run)
	submittedAt     time.Time

	emitMu sync.Mutex

	mu         sync.Mutex
	progress   domain.Progress
	report     *domain.BacktestReport
	err        error
	finishedAt time.Time
}

func newRun(ctx context.Context, cfg domain.BacktestConfig, now time.Time, release func(*Run)) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	return &Run{
		id:          cfg.ID,
		cfg:         cfg,
		ctx:         runCtx,
		cancel:      cancel,
		done:        make(chan struct{}),
		release:     release,
		submittedAt: now,
		progress: domain.Progress{
			BacktestID: cfg.ID,
			Status:     domain.StatusIdle,
			UpdatedAt:  now,
		},
	}
}

// ID devuelve el identificador del backtest.
func (r *Run) ID() string { return r.id }

// Config devuelve la configuración con defaults aplicados.
func (r *Run) Config() domain.BacktestConfig { return r.cfg }

// Done se cierra cuando el backtest llega a un estado terminal.
func (r *Run) Done() <-chan struct{} { return r.done }

// Progress devuelve el snapshot de avance actual.
func (r *Run) Progress() domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Wait bloquea hasta que el backtest termina o ctx se cancela. Al terminar
// libera el handle: después de Wait, GetBacktestProgress ya no lo conoce.
// Un backtest cancelado devuelve domain.ErrBacktestCancelled y sin reporte.
func (r *Run) Wait(ctx context.Context) (*domain.BacktestReport, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
	}
	if r.release != nil {
		r.release(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report, r.err
}

// cancelled devuelve true si se pidió cancelar o el contexto del run terminó.
func (r *Run) cancelled() bool {
	return r.cancelRequested.Load() || r.ctx.Err() != nil
}

// requestCancel marca el run como cancelado si todavía no terminó.
func (r *Run) requestCancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress.Status.Terminal() {
		return false
	}
	r.cancelRequested.Store(true)
	r.cancel()
	return true
}

// advance mueve el estado hacia delante; la fracción nunca decrece.
func (r *Run) advance(status domain.RunStatus, fraction float64, now time.Time) domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress.Status.Terminal() {
		return r.progress
	}
	r.progress.Status = status
	r.progress.Fraction = max(r.progress.Fraction, fraction)
	r.progress.UpdatedAt = now
	return r.progress
}

// startFolds fija el total de folds y pasa a RUNNING.
func (r *Run) startFolds(total int, now time.Time) domain.Progress {
	r.mu.Lock()
	r.progress.FoldsTotal = total
	r.mu.Unlock()
	return r.advance(domain.StatusRunning, progressLoaded, now)
}

// foldDone suma un fold completado al progreso.
func (r *Run) foldDone(now time.Time) domain.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress.Status.Terminal() {
		return r.progress
	}
	r.progress.FoldsCompleted++
	if r.progress.FoldsTotal > 0 {
		f := progressLoaded + progressFolds*float64(r.progress.FoldsCompleted)/float64(r.progress.FoldsTotal)
		r.progress.Fraction = max(r.progress.Fraction, f)
	}
	r.progress.UpdatedAt = now
	return r.progress
}

// complete fija el estado terminal y devuelve el error efectivo. Una
// cancelación pedida antes de llegar aquí gana sobre un resultado correcto.
func (r *Run) complete(report *domain.BacktestReport, err error, now time.Time) (domain.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil && r.cancelRequested.Load() {
		report, err = nil, domain.ErrBacktestCancelled
	}
	r.report, r.err = report, err
	r.finishedAt = now
	r.progress.UpdatedAt = now
	r.progress.Status = statusFor(err)
	if err == nil {
		r.progress.Fraction = 1
	} else if r.progress.Status == domain.StatusFailed {
		r.progress.Error = err.Error()
	}
	r.cancel()
	return r.progress, err
}

// markDone despierta a quien espera en Wait o Done.
func (r *Run) markDone() {
	close(r.done)
}

// expired devuelve true si el run terminó hace más de retention.
func (r *Run) expired(now time.Time, retention time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress.Status.Terminal() && now.Sub(r.finishedAt) > retention
}

// Hitos de progreso: carga, folds y ensamblado.
const (
	progressLoading    = 0.05
	progressLoaded     = 0.20
	progressFolds      = 0.70
	progressAssembling = 0.95
)
