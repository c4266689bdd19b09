package domain

import "time"

// PerformanceTier es la nota gruesa de un backtest.
type PerformanceTier string

const (
	TierExcellent PerformanceTier = "EXCELLENT"
	TierGood      PerformanceTier = "GOOD"
	TierFair      PerformanceTier = "FAIR"
	TierPoor      PerformanceTier = "POOR"
	TierVeryPoor  PerformanceTier = "VERY_POOR"
)

// TierThreshold es el mínimo de F1 y accuracy que exige un tier.
type TierThreshold struct {
	Tier        PerformanceTier
	MinF1       float64
	MinAccuracy float64
}

// TierThresholds se evalúan en orden; gana el primero que se cumple.
var TierThresholds = []TierThreshold{
	{Tier: TierExcellent, MinF1: 0.80, MinAccuracy: 0.90},
	{Tier: TierGood, MinF1: 0.65, MinAccuracy: 0.80},
	{Tier: TierFair, MinF1: 0.50, MinAccuracy: 0.70},
	{Tier: TierPoor, MinF1: 0.30, MinAccuracy: 0.50},
}

// ClassifyTier devuelve el primer tier cuyos dos mínimos se cumplen.
func ClassifyTier(m PerformanceMetrics) PerformanceTier {
	for _, t := range TierThresholds {
		if m.F1 >= t.MinF1 && m.Accuracy >= t.MinAccuracy {
			return t.Tier
		}
	}
	return TierVeryPoor
}

// Icon devuelve un indicador corto para la consola.
func (t PerformanceTier) Icon() string {
	switch t {
	case TierExcellent:
		return "[A]"
	case TierGood:
		return "[B]"
	case TierFair:
		return "[C]"
	case TierPoor:
		return "[D]"
	default:
		return "[E]"
	}
}

// PerformanceScore combina F1 y MCC en [0,100] para comparar runs.
// Es monótono en ambos; un MCC negativo no resta.
//
//	score = 100 × (0.6·F1 + 0.4·max(0, MCC))
func PerformanceScore(m PerformanceMetrics) float64 {
	mcc := m.MCC
	if mcc < 0 {
		mcc = 0
	}
	return clamp(100*(0.6*m.F1+0.4*mcc), 0, 100)
}

// Fold es un par (train, test) producido por el splitter.
// Train puede estar vacío (método NONE) o tener varios tramos (k-fold).
type Fold struct {
	Index int
	Train []Window
	Test  Window
}

// FoldResult son las métricas de un fold concreto.
type FoldResult struct {
	Fold              Fold
	Metrics           PerformanceMetrics
	Units             int // unidades evaluadas en el test
	Unlabeled         int // unidades sin ground truth
	EvaluatorFailures int
}

// Diagnostics son contadores internos que solo se incluyen en DEBUG.
type Diagnostics struct {
	CacheHit          bool
	CacheHits         int64
	CacheMisses       int64
	CacheEvictions    int64
	CacheEntries      int
	SourceRows        map[DataSourceKind]int
	FailedSources     []DataSourceKind
	EvaluatorFailures int
	UnlabeledUnits    int
	FoldsRequested    int
	FoldsProduced     int
}

// BacktestReport es el artefacto final e inmutable de un backtest.
type BacktestReport struct {
	ID         string
	BacktestID string
	Name       string
	Config     BacktestConfig
	Dataset    DatasetInfo

	Metrics PerformanceMetrics

	// Folds es la partición usada, siempre presente.
	Folds []Fold
	// FoldResults son las métricas por fold (STANDARD o superior).
	FoldResults []FoldResult
	// WalkForwardFolds replica FoldResults solo para WALK_FORWARD.
	WalkForwardFolds []FoldResult

	Tier     PerformanceTier
	Score    float64
	Insights []string

	Detections  []DetectionResult // DETAILED o superior
	Diagnostics *Diagnostics      // solo DEBUG

	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// RunStatus es el estado de un backtest en el Run Manager.
type RunStatus string

const (
	StatusIdle        RunStatus = "IDLE"
	StatusLoadingData RunStatus = "LOADING_DATA"
	StatusRunning     RunStatus = "RUNNING"
	StatusCompleted   RunStatus = "COMPLETED"
	StatusFailed      RunStatus = "FAILED"
	StatusCancelled   RunStatus = "CANCELLED"
)

// Terminal devuelve true para COMPLETED, FAILED y CANCELLED.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active devuelve true mientras el backtest ocupa un slot de concurrencia.
func (s RunStatus) Active() bool {
	return s == StatusLoadingData || s == StatusRunning
}

// Progress es el snapshot de avance de un backtest.
type Progress struct {
	BacktestID     string
	Status         RunStatus
	Fraction       float64 // [0,1], nunca decrece
	FoldsTotal     int
	FoldsCompleted int
	Error          string
	UpdatedAt      time.Time
}

// Statistics son los contadores globales del framework.
//
// TotalBacktests cuenta cada envío, incluidos los que fallan la validación
// y los rechazados por el límite de concurrencia. Todo envío termina en
// exactamente uno de Completed, Failed, Cancelled o Rejected; mientras
// tanto Total = Completed + Failed + Cancelled + Rejected + en curso.
type Statistics struct {
	TotalBacktests     int
	CompletedBacktests int
	FailedBacktests    int
	CancelledBacktests int
	RejectedBacktests  int
	ActiveBacktests    int
}
