package backtest

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Umbrales de las reglas de insights.
const (
	insightLowPrecision    = 0.5
	insightHighRecall      = 0.7
	insightHighPrecision   = 0.7
	insightLowRecall       = 0.3
	insightWeakAUC         = 0.6
	insightMinorityShare   = 0.05
	insightFoldF1Spread    = 0.25
	insightFailureShare    = 0.05
	insightLowQuality      = 70.0
	insightUnlabeledShare  = 0.5
	insightMinLabeledUnits = 10
)

// InsightInput es lo que miran las reglas de insights.
type InsightInput struct {
	Config            domain.BacktestConfig
	Metrics           domain.PerformanceMetrics
	Folds             []domain.FoldResult
	Dataset           domain.DatasetInfo
	EvaluatorFailures int
	Unlabeled         int
}

// GenerateInsights aplica las reglas en orden fijo y devuelve las
// observaciones legibles que se cumplen.
func GenerateInsights(in InsightInput) []string {
	m := in.Metrics
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}

	units := m.TotalDetections + in.Unlabeled
	if m.TotalDetections == 0 {
		add("No labeled activity in the window: metrics are undefined, widen the window or enable more label sources")
	} else if m.TotalDetections < insightMinLabeledUnits {
		add("Only %d labeled units: metrics have high variance", m.TotalDetections)
	}

	if len(in.Dataset.Failed) > 0 {
		add("Dataset degraded: sources %v failed (quality %.0f/100)", in.Dataset.Failed, in.Dataset.QualityScore)
	} else if in.Dataset.QualityScore < insightLowQuality {
		add("Low dataset quality %.0f/100: many days without trades", in.Dataset.QualityScore)
	}

	if m.TotalDetections > 0 {
		switch {
		case m.Precision < insightLowPrecision && m.Recall >= insightHighRecall:
			add("Thresholds look permissive: recall %.2f but precision %.2f, raise thresholds to cut false positives", m.Recall, m.Precision)
		case m.Precision >= insightHighPrecision && m.Recall < insightLowRecall:
			add("Thresholds look conservative: precision %.2f but recall %.2f, lower thresholds to catch more cases", m.Precision, m.Recall)
		}

		if m.MCC < 0 {
			add("Predictions are anti-correlated with ground truth (MCC %.2f): the signal may be inverted", m.MCC)
		} else if m.AUCROC < insightWeakAUC {
			add("Weak ranking quality (AUC-ROC %.2f): confidence barely separates positives from negatives", m.AUCROC)
		}

		positives := m.TruePositives + m.FalseNegatives
		share := float64(positives) / float64(m.TotalDetections)
		if share < insightMinorityShare || share > 1-insightMinorityShare {
			add("Class imbalance: %.1f%% of labeled units are positive, accuracy is not informative", 100*share)
		}
	}

	if spread, ok := foldF1Spread(in.Folds); ok && spread > insightFoldF1Spread {
		add("Unstable across folds: F1 varies by %.2f between best and worst fold", spread)
	}

	if units > 0 {
		if in.EvaluatorFailures > 0 && float64(in.EvaluatorFailures)/float64(units) >= insightFailureShare {
			add("Evaluator failed on %d of %d units; failures were counted as negative predictions", in.EvaluatorFailures, units)
		}
		if float64(in.Unlabeled)/float64(units) > insightUnlabeledShare {
			add("%d of %d units had no ground truth and were excluded from metrics", in.Unlabeled, units)
		}
	}

	if len(out) == 0 {
		add("Performance tier %s with score %.1f", domain.ClassifyTier(m), domain.PerformanceScore(m))
	}
	return out
}

// foldF1Spread devuelve max(F1) - min(F1) entre folds con datos etiquetados.
func foldF1Spread(folds []domain.FoldResult) (float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	n := 0
	for _, f := range folds {
		if f.Metrics.TotalDetections == 0 {
			continue
		}
		lo = math.Min(lo, f.Metrics.F1)
		hi = math.Max(hi, f.Metrics.F1)
		n++
	}
	if n < 2 {
		return 0, false
	}
	return hi - lo, true
}
