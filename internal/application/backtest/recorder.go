package backtest

import (
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Recorder recibe los eventos medibles del backtester. La implementación
// con Prometheus vive en internal/metrics.
type Recorder interface {
	CacheLookup(hit bool)
	CacheEviction()
	SourceFetched(kind domain.DataSourceKind, rows int, err error)
	EvaluatorFailure(strategy string)
	BacktestFinished(method domain.ValidationMethod, status domain.RunStatus, elapsed time.Duration)
	ActiveBacktests(n int)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(bool) {}
func (nopRecorder) CacheEviction() {}
func (nopRecorder) SourceFetched(domain.DataSourceKind, int, error) {}
func (nopRecorder) EvaluatorFailure(string) {}
func (nopRecorder) BacktestFinished(domain.ValidationMethod, domain.RunStatus, time.Duration) {}
func (nopRecorder) ActiveBacktests(int) {}
