package ports

import (
	"context"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// StrategyEvaluator es la capacidad pluggable que decide si una unidad es
// sospechosa. El backtester no implementa ninguna heurística concreta.
type StrategyEvaluator interface {
	Evaluate(ctx context.Context, unit domain.DataUnit, thresholds domain.Thresholds) (domain.Prediction, error)
}

// EvaluatorFunc adapta una función a StrategyEvaluator (estrategias CUSTOM).
type EvaluatorFunc func(ctx context.Context, unit domain.DataUnit, thresholds domain.Thresholds) (domain.Prediction, error)

// Evaluate implementa StrategyEvaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, unit domain.DataUnit, thresholds domain.Thresholds) (domain.Prediction, error) {
	return f(ctx, unit, thresholds)
}
