package backtest

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// AssembleInput es todo lo que necesita el ensamblador para un reporte.
type AssembleInput struct {
	BacktestID     string
	Config         domain.BacktestConfig
	Dataset        *domain.HistoricalDataset
	Simulations    []FoldSimulation // en orden de fold
	FoldsRequested int
	Load           LoadInfo
	Cache          CacheStats
	StartedAt      time.Time
	CompletedAt    time.Time
}

// Assemble agrega las simulaciones por fold en el reporte final. Los
// números no dependen del nivel de detalle: el detalle solo decide qué
// secciones se incluyen.
func Assemble(in AssembleInput) *domain.BacktestReport {
	cfg := in.Config
	folds := make([]domain.Fold, len(in.Simulations))
	results := make([]domain.FoldResult, len(in.Simulations))
	matrices := make([]domain.ConfusionMatrix, len(in.Simulations))
	scores := make([][]domain.ScoredLabel, len(in.Simulations))
	var detections []domain.DetectionResult
	failures, unlabeled := 0, 0

	for i, sim := range in.Simulations {
		cm, sc := domain.Confusion(sim.Detections)
		matrices[i], scores[i] = cm, sc
		folds[i] = sim.Fold
		results[i] = domain.FoldResult{
			Fold:              sim.Fold,
			Metrics:           domain.MetricsFromConfusion(cm, sc),
			Units:             sim.Units,
			Unlabeled:         sim.Unlabeled,
			EvaluatorFailures: sim.EvaluatorFailures,
		}
		failures += sim.EvaluatorFailures
		unlabeled += sim.Unlabeled
		detections = append(detections, sim.Detections...)
	}

	overall := domain.AggregateMetrics(matrices, scores)
	info := in.Dataset.Info()

	r := &domain.BacktestReport{
		ID:          uuid.New().String(),
		BacktestID:  in.BacktestID,
		Name:        cfg.Name,
		Config:      cfg,
		Dataset:     info,
		Metrics:     overall,
		Folds:       folds,
		Tier:        domain.ClassifyTier(overall),
		Score:       domain.PerformanceScore(overall),
		StartedAt:   in.StartedAt,
		CompletedAt: in.CompletedAt,
		Duration:    in.CompletedAt.Sub(in.StartedAt),
	}

	if cfg.Detail.AtLeast(domain.DetailStandard) {
		r.FoldResults = results
		if cfg.Method == domain.ValidationWalkForward {
			r.WalkForwardFolds = slices.Clone(results)
		}
		r.Insights = GenerateInsights(InsightInput{
			Config:            cfg,
			Metrics:           overall,
			Folds:             results,
			Dataset:           info,
			EvaluatorFailures: failures,
			Unlabeled:         unlabeled,
		})
	}
	if cfg.Detail.AtLeast(domain.DetailDetailed) {
		r.Detections = detections
	}
	if cfg.Detail.AtLeast(domain.DetailDebug) {
		r.Diagnostics = &domain.Diagnostics{
			CacheHit:          in.Load.CacheHit,
			CacheHits:         in.Cache.Hits,
			CacheMisses:       in.Cache.Misses,
			CacheEvictions:    in.Cache.Evictions,
			CacheEntries:      in.Cache.Entries,
			SourceRows:        info.Rows,
			FailedSources:     info.Failed,
			EvaluatorFailures: failures,
			UnlabeledUnits:    unlabeled,
			FoldsRequested:    in.FoldsRequested,
			FoldsProduced:     len(in.Simulations),
		}
	}
	return r
}
