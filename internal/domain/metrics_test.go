package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsFromConfusion_Perfect(t *testing.T) {
	m := MetricsFromConfusion(ConfusionMatrix{TruePositives: 5, TrueNegatives: 5}, nil)
	assert.Equal(t, 10, m.TotalDetections)
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 1.0, m.Precision)
	assert.Equal(t, 1.0, m.Recall)
	assert.Equal(t, 1.0, m.F1)
	assert.InDelta(t, 1.0, m.MCC, 1e-12)
}

func TestMetricsFromConfusion_AllWrong(t *testing.T) {
	m := MetricsFromConfusion(ConfusionMatrix{FalsePositives: 5, FalseNegatives: 5}, nil)
	assert.Equal(t, 0.0, m.Accuracy)
	assert.Equal(t, 0.0, m.F1)
	assert.InDelta(t, -1.0, m.MCC, 1e-12)
}

func TestMetricsFromConfusion_Mixed(t *testing.T) {
	// TP=3 FP=1 TN=5 FN=1
	// MCC = (15-1)/sqrt(4·4·6·6) = 14/24
	m := MetricsFromConfusion(ConfusionMatrix{TruePositives: 3, FalsePositives: 1, TrueNegatives: 5, FalseNegatives: 1}, nil)
	assert.InDelta(t, 0.8, m.Accuracy, 1e-12)
	assert.InDelta(t, 0.75, m.Precision, 1e-12)
	assert.InDelta(t, 0.75, m.Recall, 1e-12)
	assert.InDelta(t, 0.75, m.F1, 1e-12)
	assert.InDelta(t, 14.0/24.0, m.MCC, 1e-12)
}

func TestMetricsFromConfusion_TenDetections(t *testing.T) {
	// TP=6 FP=1 TN=2 FN=1: precision = recall = 6/7, F1 = 6/7
	// MCC = (12-1)/sqrt(7·7·3·3) = 11/21
	m := MetricsFromConfusion(ConfusionMatrix{TruePositives: 6, FalsePositives: 1, TrueNegatives: 2, FalseNegatives: 1}, nil)
	assert.Equal(t, 10, m.TotalDetections)
	assert.InDelta(t, 0.8, m.Accuracy, 1e-12)
	assert.InDelta(t, 6.0/7.0, m.Precision, 1e-12)
	assert.InDelta(t, 6.0/7.0, m.Recall, 1e-12)
	assert.InDelta(t, 6.0/7.0, m.F1, 1e-12)
	assert.InDelta(t, 11.0/21.0, m.MCC, 1e-12)
	assert.Equal(t, TierGood, ClassifyTier(m))
}

func TestMetricsFromConfusion_Empty(t *testing.T) {
	m := MetricsFromConfusion(ConfusionMatrix{}, nil)
	assert.Equal(t, 0, m.TotalDetections)
	assert.Equal(t, 0.0, m.Accuracy)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.MCC)
	assert.Equal(t, 0.5, m.AUCROC)
	assert.False(t, math.IsNaN(m.F1))
}

func TestMetricsFromConfusion_NoPredictedPositives(t *testing.T) {
	// Nunca predice positivo: precision indefinida → 0, MCC → 0.
	m := MetricsFromConfusion(ConfusionMatrix{TrueNegatives: 8, FalseNegatives: 2}, nil)
	assert.InDelta(t, 0.8, m.Accuracy, 1e-12)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, 0.0, m.Recall)
	assert.Equal(t, 0.0, m.MCC)
}

func TestAUCROC_Ranking(t *testing.T) {
	perfect := []ScoredLabel{{0.9, true}, {0.8, true}, {0.2, false}, {0.1, false}}
	assert.Equal(t, 1.0, AUCROC(perfect))

	inverted := []ScoredLabel{{0.1, true}, {0.2, true}, {0.8, false}, {0.9, false}}
	assert.Equal(t, 0.0, AUCROC(inverted))

	// pares positivos > negativos: 0.9>0.6, 0.9>0.1, 0.4>0.1 → 3/4
	mixed := []ScoredLabel{{0.9, true}, {0.4, true}, {0.6, false}, {0.1, false}}
	assert.InDelta(t, 0.75, AUCROC(mixed), 1e-12)
}

func TestAUCROC_TiesAndSingleClass(t *testing.T) {
	ties := []ScoredLabel{{0.5, true}, {0.5, false}, {0.5, true}, {0.5, false}}
	assert.InDelta(t, 0.5, AUCROC(ties), 1e-12)

	assert.Equal(t, 0.5, AUCROC([]ScoredLabel{{0.9, true}, {0.1, true}}))
	assert.Equal(t, 0.5, AUCROC(nil))
}

func TestAggregateMetrics_PoolsCounts(t *testing.T) {
	a := ConfusionMatrix{TruePositives: 1}
	b := ConfusionMatrix{TruePositives: 1, FalsePositives: 3}

	m := AggregateMetrics([]ConfusionMatrix{a, b}, nil)
	assert.Equal(t, 2, m.TruePositives)
	assert.Equal(t, 3, m.FalsePositives)
	// Sumando conteos: 2/5. Promediar tasas daría (1 + 0.25)/2.
	assert.InDelta(t, 0.4, m.Precision, 1e-12)
}

func TestConfusion_IgnoresUnlabeled(t *testing.T) {
	dets := []DetectionResult{
		{Predicted: true, Labeled: true, Actual: true, Confidence: 0.9},
		{Predicted: true, Labeled: true, Actual: false, Confidence: 0.7},
		{Predicted: false, Labeled: true, Actual: true, Confidence: 0.2},
		{Predicted: false, Labeled: true, Actual: false, Confidence: 0.1},
		{Predicted: true, Labeled: false, Confidence: 1},
	}
	cm, scores := Confusion(dets)
	assert.Equal(t, ConfusionMatrix{TruePositives: 1, FalsePositives: 1, TrueNegatives: 1, FalseNegatives: 1}, cm)
	assert.Len(t, scores, 4)

	m := ComputeMetrics(dets)
	assert.Equal(t, 4, m.TotalDetections)
	assert.InDelta(t, 0.75, m.AUCROC, 1e-12)
}

func TestClassifyTier(t *testing.T) {
	cases := []struct {
		f1, acc float64
		want    PerformanceTier
	}{
		{0.85, 0.95, TierExcellent},
		{0.85, 0.85, TierGood}, // accuracy no llega a EXCELLENT
		{0.55, 0.75, TierFair},
		{0.35, 0.55, TierPoor},
		{0.10, 0.99, TierVeryPoor},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyTier(PerformanceMetrics{F1: c.f1, Accuracy: c.acc}), "f1=%v acc=%v", c.f1, c.acc)
	}
}

func TestPerformanceScore(t *testing.T) {
	assert.InDelta(t, 100.0, PerformanceScore(PerformanceMetrics{F1: 1, MCC: 1}), 1e-9)
	assert.InDelta(t, 30.0, PerformanceScore(PerformanceMetrics{F1: 0.5, MCC: -0.8}), 1e-9)
	assert.InDelta(t, 0.0, PerformanceScore(PerformanceMetrics{}), 1e-9)
	// Monótono en F1.
	assert.Greater(t,
		PerformanceScore(PerformanceMetrics{F1: 0.6, MCC: 0.2}),
		PerformanceScore(PerformanceMetrics{F1: 0.5, MCC: 0.2}))
}
