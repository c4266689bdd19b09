package domain

// metrics.go: métricas de clasificación a partir de la matriz de confusión.
//
// Todas las tasas se derivan de los cuatro conteos (TP, FP, TN, FN). Para
// agregar varios folds se suman los conteos y se recalculan las tasas una
// sola vez: promediar tasas ya calculadas distorsiona el resultado cuando
// los folds tienen tamaños distintos.

import (
	"math"
	"sort"
)

// ConfusionOutcome es la celda de la matriz a la que pertenece una detección.
type ConfusionOutcome int

const (
	TruePositive ConfusionOutcome = iota
	FalsePositive
	TrueNegative
	FalseNegative
)

// ConfusionMatrix son los conteos 2×2.
type ConfusionMatrix struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
}

// Total devuelve la suma de las cuatro celdas.
func (c ConfusionMatrix) Total() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Add devuelve la suma celda a celda.
func (c ConfusionMatrix) Add(o ConfusionMatrix) ConfusionMatrix {
	return ConfusionMatrix{
		TruePositives:  c.TruePositives + o.TruePositives,
		FalsePositives: c.FalsePositives + o.FalsePositives,
		TrueNegatives:  c.TrueNegatives + o.TrueNegatives,
		FalseNegatives: c.FalseNegatives + o.FalseNegatives,
	}
}

// Record suma una detección a la celda correspondiente.
func (c *ConfusionMatrix) Record(o ConfusionOutcome) {
	switch o {
	case TruePositive:
		c.TruePositives++
	case FalsePositive:
		c.FalsePositives++
	case TrueNegative:
		c.TrueNegatives++
	case FalseNegative:
		c.FalseNegatives++
	}
}

// ScoredLabel es el par (confianza, ground truth) que necesita el AUC.
type ScoredLabel struct {
	Score    float64
	Positive bool
}

// PerformanceMetrics son los conteos más las tasas derivadas.
type PerformanceMetrics struct {
	ConfusionMatrix
	TotalDetections int

	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	MCC       float64
	AUCROC    float64
}

// Confusion devuelve la matriz de confusión de las detecciones con ground
// truth y sus pares (confianza, label). Las no etiquetadas se ignoran.
func Confusion(detections []DetectionResult) (ConfusionMatrix, []ScoredLabel) {
	var cm ConfusionMatrix
	scores := make([]ScoredLabel, 0, len(detections))
	for _, d := range detections {
		o, ok := d.Outcome()
		if !ok {
			continue
		}
		cm.Record(o)
		scores = append(scores, ScoredLabel{Score: d.Confidence, Positive: d.Actual})
	}
	return cm, scores
}

// ComputeMetrics reduce las detecciones a PerformanceMetrics.
func ComputeMetrics(detections []DetectionResult) PerformanceMetrics {
	cm, scores := Confusion(detections)
	return MetricsFromConfusion(cm, scores)
}

// MetricsFromConfusion deriva todas las tasas desde los conteos. scores se
// usa solo para el AUC-ROC.
func MetricsFromConfusion(cm ConfusionMatrix, scores []ScoredLabel) PerformanceMetrics {
	tp := float64(cm.TruePositives)
	fp := float64(cm.FalsePositives)
	tn := float64(cm.TrueNegatives)
	fn := float64(cm.FalseNegatives)
	total := cm.Total()

	m := PerformanceMetrics{
		ConfusionMatrix: cm,
		TotalDetections: total,
		Accuracy:        safeDiv(tp+tn, float64(total)),
		Precision:       safeDiv(tp, tp+fp),
		Recall:          safeDiv(tp, tp+fn),
		AUCROC:          AUCROC(scores),
	}

	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}

	denom := math.Sqrt((tp + fp) * (tp + fn) * (tn + fp) * (tn + fn))
	if denom > 0 {
		m.MCC = (tp*tn - fp*fn) / denom
	}

	m.Accuracy = clamp(m.Accuracy, 0, 1)
	m.Precision = clamp(m.Precision, 0, 1)
	m.Recall = clamp(m.Recall, 0, 1)
	m.F1 = clamp(m.F1, 0, 1)
	m.MCC = clamp(m.MCC, -1, 1)
	m.AUCROC = clamp(m.AUCROC, 0, 1)
	return m
}

// AUCROC calcula el área bajo la curva ROC por rangos (Mann-Whitney U):
// la probabilidad de que un positivo al azar tenga más confianza que un
// negativo al azar. Los empates reciben el rango medio. Devuelve 0.5 si
// falta alguna de las dos clases.
func AUCROC(scores []ScoredLabel) float64 {
	var nPos, nNeg int
	for _, s := range scores {
		if s.Positive {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}

	sorted := make([]ScoredLabel, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	// Suma de rangos (1-based) de los positivos, con rango medio en empates.
	rankSumPos := 0.0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].Score == sorted[i].Score {
			j++
		}
		avgRank := float64(i+1+j) / 2 // media de i+1 .. j
		for k := i; k < j; k++ {
			if sorted[k].Positive {
				rankSumPos += avgRank
			}
		}
		i = j
	}

	u := rankSumPos - float64(nPos)*float64(nPos+1)/2
	return clamp(u/(float64(nPos)*float64(nNeg)), 0, 1)
}

// AggregateMetrics combina folds sumando conteos y recalculando las tasas.
func AggregateMetrics(matrices []ConfusionMatrix, scores [][]ScoredLabel) PerformanceMetrics {
	var cm ConfusionMatrix
	for _, m := range matrices {
		cm = cm.Add(m)
	}
	var pooled []ScoredLabel
	for _, s := range scores {
		pooled = append(pooled, s...)
	}
	return MetricsFromConfusion(cm, pooled)
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return math.Max(lo, math.Min(hi, 0))
	}
	return math.Max(lo, math.Min(hi, v))
}
