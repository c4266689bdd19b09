package backtest

// splitter.go: partición temporal del dataset en folds (train, test).
//
// Todas las ventanas son semiabiertas [Start, End) y los cortes se calculan
// en nanosegundos enteros, así que los tests de un mismo split nunca se
// solapan y su unión cubre exactamente la ventana (salvo walk-forward, cuyo
// primer tramo solo entrena).

import (
	"fmt"
	"math"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

const day = 24 * time.Hour

// DefaultMaxLeaveOneOutFolds limita los folds de LEAVE_ONE_OUT en ventanas largas.
const DefaultMaxLeaveOneOutFolds = 60

// SplitParams son los parámetros de partición de un backtest.
type SplitParams struct {
	TrainTestSplit      float64
	KFolds              int
	WalkForwardWindow   time.Duration
	MaxLeaveOneOutFolds int
}

// SplitParamsFor extrae los parámetros de una configuración ya con defaults.
func SplitParamsFor(cfg domain.BacktestConfig, maxLOO int) SplitParams {
	return SplitParams{
		TrainTestSplit:      cfg.TrainTestSplit,
		KFolds:              cfg.KFolds,
		WalkForwardWindow:   time.Duration(cfg.WalkForwardWindowDays) * day,
		MaxLeaveOneOutFolds: maxLOO,
	}
}

// Split parte la ventana según el método. Es determinista: la misma entrada
// produce siempre los mismos folds.
func Split(w domain.Window, method domain.ValidationMethod, p SplitParams) ([]domain.Fold, error) {
	if w.IsEmpty() {
		return nil, fmt.Errorf("backtest.Split: %w: empty window", domain.ErrInvalidConfig)
	}
	switch method {
	case domain.ValidationNone:
		return []domain.Fold{{Index: 0, Test: w}}, nil
	case domain.ValidationTrainTest:
		return splitTrainTest(w, p.TrainTestSplit)
	case domain.ValidationKFold:
		return splitKFold(w, p.KFolds)
	case domain.ValidationWalkForward:
		return splitWalkForward(w, p.WalkForwardWindow)
	case domain.ValidationLeaveOneOut:
		return splitLeaveOneOut(w, p.MaxLeaveOneOutFolds), nil
	}
	return nil, fmt.Errorf("backtest.Split: %w: unsupported method %q", domain.ErrInvalidConfig, method)
}

func splitTrainTest(w domain.Window, ratio float64) ([]domain.Fold, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, fmt.Errorf("backtest.Split: %w: ratio %.4f outside (0,1)", domain.ErrInvalidConfig, ratio)
	}
	cut := w.Start.Add(time.Duration(math.Round(float64(w.Duration()) * ratio)))
	if !cut.Before(w.End) {
		// ventanas de pocos nanosegundos: todo queda en test
		return []domain.Fold{{Index: 0, Test: w}}, nil
	}
	f := domain.Fold{Index: 0, Test: domain.Window{Start: cut, End: w.End}}
	if cut.After(w.Start) {
		f.Train = []domain.Window{{Start: w.Start, End: cut}}
	}
	return []domain.Fold{f}, nil
}

// splitKFold corta la ventana en k tramos contiguos; cada fold testea uno y
// entrena con el resto. k se reduce al número de días si la ventana es corta.
func splitKFold(w domain.Window, k int) ([]domain.Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("backtest.Split: %w: fold count %d < 2", domain.ErrInvalidConfig, k)
	}
	k = min(k, w.DayUnits())
	if k <= 1 {
		return []domain.Fold{{Index: 0, Test: w}}, nil
	}
	return complementFolds(w, equalSlices(w, k)), nil
}

// splitWalkForward testea ventanas consecutivas de longitud size entrenando
// siempre con todo lo anterior. Si size no deja sitio para train, se usa la
// mitad de la ventana.
func splitWalkForward(w domain.Window, size time.Duration) ([]domain.Fold, error) {
	if size <= 0 {
		return nil, fmt.Errorf("backtest.Split: %w: walk-forward window %s must be positive", domain.ErrInvalidConfig, size)
	}
	if size >= w.Duration() {
		size = w.Duration() / 2
	}
	if size <= 0 {
		return []domain.Fold{{Index: 0, Test: w}}, nil
	}

	var folds []domain.Fold
	for testStart := w.Start.Add(size); testStart.Before(w.End); {
		testEnd := testStart.Add(size)
		if testEnd.After(w.End) {
			testEnd = w.End
		}
		folds = append(folds, domain.Fold{
			Index: len(folds),
			Train: []domain.Window{{Start: w.Start, End: testStart}},
			Test:  domain.Window{Start: testStart, End: testEnd},
		})
		testStart = testEnd
	}
	return folds, nil
}

// splitLeaveOneOut deja fuera un día por fold. Con más días que maxFolds,
// deja fuera tramos iguales de varios días.
func splitLeaveOneOut(w domain.Window, maxFolds int) []domain.Fold {
	if maxFolds <= 0 {
		maxFolds = DefaultMaxLeaveOneOutFolds
	}
	days := w.DayUnits()
	if days <= 1 {
		return []domain.Fold{{Index: 0, Test: w}}
	}

	var slices []domain.Window
	if days <= maxFolds {
		for i := 0; i < days; i++ {
			s := w.Start.Add(time.Duration(i) * day)
			e := s.Add(day)
			if e.After(w.End) {
				e = w.End
			}
			slices = append(slices, domain.Window{Start: s, End: e})
		}
	} else {
		slices = equalSlices(w, maxFolds)
	}
	return complementFolds(w, slices)
}

// equalSlices corta w en n tramos contiguos de igual longitud (±1ns).
func equalSlices(w domain.Window, n int) []domain.Window {
	d := int64(w.Duration())
	k := int64(n)
	at := func(i int64) time.Time {
		return w.Start.Add(time.Duration(d/k*i + (d%k)*i/k))
	}
	out := make([]domain.Window, n)
	for i := int64(0); i < k; i++ {
		out[i] = domain.Window{Start: at(i), End: at(i + 1)}
	}
	return out
}

// complementFolds genera un fold por tramo: test = el tramo, train = lo que
// queda de la ventana a cada lado.
func complementFolds(w domain.Window, slices []domain.Window) []domain.Fold {
	folds := make([]domain.Fold, len(slices))
	for i, s := range slices {
		var train []domain.Window
		if s.Start.After(w.Start) {
			train = append(train, domain.Window{Start: w.Start, End: s.Start})
		}
		if s.End.Before(w.End) {
			train = append(train, domain.Window{Start: s.End, End: w.End})
		}
		folds[i] = domain.Fold{Index: i, Train: train, Test: s}
	}
	return folds
}

// RequestedFolds es el número de folds que pediría la configuración antes
// de ajustar por la longitud de la ventana.
func RequestedFolds(cfg domain.BacktestConfig) int {
	switch cfg.Method {
	case domain.ValidationKFold:
		return cfg.KFolds
	case domain.ValidationLeaveOneOut:
		return cfg.Window().DayUnits()
	case domain.ValidationWalkForward:
		size := time.Duration(cfg.WalkForwardWindowDays) * day
		if size <= 0 {
			return 0
		}
		rest := cfg.Window().Duration() - size
		if rest <= 0 {
			return 1
		}
		return int((rest + size - 1) / size)
	default:
		return 1
	}
}
