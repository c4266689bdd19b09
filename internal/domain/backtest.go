package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// StrategyType identifica la familia de detección que se evalúa.
type StrategyType string

const (
	StrategyInsider     StrategyType = "INSIDER_DETECTION"
	StrategyWhale       StrategyType = "WHALE_DETECTION"
	StrategyFreshWallet StrategyType = "FRESH_WALLET_DETECTION"
	StrategyCoordinated StrategyType = "COORDINATED_TRADING"
	StrategyVolume      StrategyType = "VOLUME_ANOMALY"
	StrategyPriceManip  StrategyType = "PRICE_MANIPULATION"
	StrategyComposite   StrategyType = "COMPOSITE"
	StrategyCustom      StrategyType = "CUSTOM"
)

// StrategyTypes devuelve los tipos soportados en orden estable.
func StrategyTypes() []StrategyType {
	return []StrategyType{
		StrategyInsider, StrategyWhale, StrategyFreshWallet, StrategyCoordinated,
		StrategyVolume, StrategyPriceManip, StrategyComposite, StrategyCustom,
	}
}

// Valid devuelve true si el tipo es uno de los conocidos.
func (s StrategyType) Valid() bool {
	return slices.Contains(StrategyTypes(), s)
}

// ValidationMethod es el protocolo de partición del dataset.
type ValidationMethod string

const (
	ValidationNone        ValidationMethod = "NONE"
	ValidationTrainTest   ValidationMethod = "TRAIN_TEST_SPLIT"
	ValidationKFold       ValidationMethod = "K_FOLD_CV"
	ValidationWalkForward ValidationMethod = "WALK_FORWARD"
	ValidationLeaveOneOut ValidationMethod = "LEAVE_ONE_OUT"
)

// Valid devuelve true si el método es soportado.
func (m ValidationMethod) Valid() bool {
	switch m {
	case ValidationNone, ValidationTrainTest, ValidationKFold, ValidationWalkForward, ValidationLeaveOneOut:
		return true
	}
	return false
}

// ReportDetail controla el tamaño del reporte, nunca su contenido numérico.
type ReportDetail string

const (
	DetailSummary  ReportDetail = "SUMMARY"
	DetailStandard ReportDetail = "STANDARD"
	DetailDetailed ReportDetail = "DETAILED"
	DetailDebug    ReportDetail = "DEBUG"
)

// rank ordena los niveles: SUMMARY < STANDARD < DETAILED < DEBUG.
func (d ReportDetail) rank() int {
	switch d {
	case DetailSummary:
		return 0
	case DetailStandard:
		return 1
	case DetailDetailed:
		return 2
	case DetailDebug:
		return 3
	}
	return -1
}

// Valid devuelve true si el nivel es conocido.
func (d ReportDetail) Valid() bool { return d.rank() >= 0 }

// AtLeast devuelve true si d incluye todo lo que incluye other.
func (d ReportDetail) AtLeast(other ReportDetail) bool {
	return d.rank() >= other.rank()
}

// Defaults de los parámetros de validación.
const (
	DefaultTrainTestSplit        = 0.8
	DefaultKFolds                = 5
	DefaultWalkForwardWindowDays = 7
)

// Thresholds es el set de umbrales por estrategia (clave → valor).
type Thresholds map[string]float64

// Get devuelve el umbral o def si no está definido.
func (t Thresholds) Get(key string, def float64) float64 {
	if v, ok := t[key]; ok {
		return v
	}
	return def
}

// StrategyConfig describe qué evaluador se usa y con qué umbrales.
type StrategyConfig struct {
	Type       StrategyType `yaml:"type"`
	CustomName string       `yaml:"custom_name"` // solo para CUSTOM
	Thresholds Thresholds   `yaml:"thresholds"`
}

// EvaluatorName devuelve la clave con la que se resuelve el evaluador.
func (s StrategyConfig) EvaluatorName() string {
	if s.Type == StrategyCustom {
		return s.CustomName
	}
	return string(s.Type)
}

// BacktestConfig es la petición inmutable de un backtest.
type BacktestConfig struct {
	ID          string
	Name        string
	Description string
	Strategy    StrategyConfig
	Sources     []DataSourceKind // vacío = todas
	Start       time.Time
	End         time.Time
	Method      ValidationMethod

	TrainTestSplit        float64 // (0,1), 0 = default
	KFolds                int     // >= 2, 0 = default
	WalkForwardWindowDays int     // > 0, 0 = default

	Detail      ReportDetail
	BypassCache bool
}

// WithDefaults devuelve una copia con los valores cero reemplazados por defaults.
// No valida: los valores negativos se conservan para que Validate los rechace.
func (c BacktestConfig) WithDefaults() BacktestConfig {
	if c.Method == "" {
		c.Method = ValidationNone
	}
	if c.TrainTestSplit == 0 {
		c.TrainTestSplit = DefaultTrainTestSplit
	}
	if c.KFolds == 0 {
		c.KFolds = DefaultKFolds
	}
	if c.WalkForwardWindowDays == 0 {
		c.WalkForwardWindowDays = DefaultWalkForwardWindowDays
	}
	if c.Detail == "" {
		c.Detail = DetailStandard
	}
	if len(c.Sources) == 0 {
		c.Sources = AllSourceKinds()
	} else {
		c.Sources = NormalizeSources(c.Sources)
	}
	return c
}

// Validate comprueba los invariantes de la configuración. Debe llamarse
// sobre el resultado de WithDefaults.
func (c BacktestConfig) Validate() error {
	var problems []string

	if c.Start.IsZero() || c.End.IsZero() {
		problems = append(problems, "start and end are required")
	} else if !c.Start.Before(c.End) {
		problems = append(problems, fmt.Sprintf("start %s must be before end %s",
			c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339)))
	}
	if !c.Method.Valid() {
		problems = append(problems, fmt.Sprintf("unsupported validation method %q", c.Method))
	}
	if c.TrainTestSplit <= 0 || c.TrainTestSplit >= 1 {
		problems = append(problems, fmt.Sprintf("train/test ratio %.4f must be in (0,1)", c.TrainTestSplit))
	}
	if c.KFolds < 2 {
		problems = append(problems, fmt.Sprintf("fold count %d must be >= 2", c.KFolds))
	}
	if c.WalkForwardWindowDays <= 0 {
		problems = append(problems, fmt.Sprintf("walk-forward window %d days must be positive", c.WalkForwardWindowDays))
	}
	if !c.Detail.Valid() {
		problems = append(problems, fmt.Sprintf("unknown report detail %q", c.Detail))
	}
	if !c.Strategy.Type.Valid() {
		problems = append(problems, fmt.Sprintf("unknown strategy type %q", c.Strategy.Type))
	}
	if c.Strategy.Type == StrategyCustom && c.Strategy.CustomName == "" {
		problems = append(problems, "custom strategy requires a custom name")
	}
	for _, s := range c.Sources {
		if !s.Valid() {
			problems = append(problems, fmt.Sprintf("unknown data source %q", s))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Window devuelve la ventana completa del backtest.
func (c BacktestConfig) Window() Window {
	return Window{Start: c.Start, End: c.End}
}
