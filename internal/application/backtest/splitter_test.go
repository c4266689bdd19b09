package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

func defaultParams() SplitParams {
	return SplitParams{
		TrainTestSplit:      domain.DefaultTrainTestSplit,
		KFolds:              domain.DefaultKFolds,
		WalkForwardWindow:   7 * day,
		MaxLeaveOneOutFolds: DefaultMaxLeaveOneOutFolds,
	}
}

// assertTestsPartition comprueba que los tests de los folds son contiguos,
// no se solapan y cubren exactamente [from, w.End).
func assertTestsPartition(t *testing.T, w domain.Window, from time.Time, folds []domain.Fold) {
	t.Helper()
	require.NotEmpty(t, folds)
	assert.Equal(t, from, folds[0].Test.Start)
	for i, f := range folds {
		assert.Equal(t, i, f.Index)
		assert.False(t, f.Test.IsEmpty(), "fold %d has empty test", i)
		if i > 0 {
			assert.Equal(t, folds[i-1].Test.End, f.Test.Start, "gap or overlap before fold %d", i)
		}
	}
	assert.Equal(t, w.End, folds[len(folds)-1].Test.End)
}

// assertTrainDisjoint comprueba que ningún tramo de train toca el test.
func assertTrainDisjoint(t *testing.T, folds []domain.Fold) {
	t.Helper()
	for _, f := range folds {
		for _, tr := range f.Train {
			overlap := tr.Start.Before(f.Test.End) && f.Test.Start.Before(tr.End)
			assert.False(t, overlap, "fold %d: train %v overlaps test %v", f.Index, tr, f.Test)
		}
	}
}

func TestSplit_None(t *testing.T) {
	w := window(0, 10)
	folds, err := Split(w, domain.ValidationNone, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 1)
	assert.Empty(t, folds[0].Train)
	assert.Equal(t, w, folds[0].Test)
}

func TestSplit_TrainTest(t *testing.T) {
	w := window(0, 10)
	folds, err := Split(w, domain.ValidationTrainTest, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 1)

	require.Len(t, folds[0].Train, 1)
	assert.Equal(t, window(0, 8), folds[0].Train[0])
	assert.Equal(t, window(8, 10), folds[0].Test)
}

func TestSplit_KFold(t *testing.T) {
	w := window(0, 10)
	folds, err := Split(w, domain.ValidationKFold, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 5)

	assertTestsPartition(t, w, w.Start, folds)
	assertTrainDisjoint(t, folds)

	// fold del medio entrena a ambos lados
	assert.Equal(t, []domain.Window{window(0, 4), window(6, 10)}, folds[2].Train)
	// los extremos solo a un lado
	assert.Equal(t, []domain.Window{window(2, 10)}, folds[0].Train)
	assert.Equal(t, []domain.Window{window(0, 8)}, folds[4].Train)
}

func TestSplit_KFold_UnevenDuration(t *testing.T) {
	w := domain.Window{Start: base, End: base.Add(7*day + 13)}
	p := defaultParams()
	p.KFolds = 3
	folds, err := Split(w, domain.ValidationKFold, p)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assertTestsPartition(t, w, w.Start, folds)
}

func TestSplit_KFold_EveryK(t *testing.T) {
	// 17 días más un resto de nanosegundos: cortes no exactos.
	w := domain.Window{Start: base, End: base.Add(17*day + 11)}
	units := w.DayUnits()
	require.Equal(t, 18, units)

	for k := 2; k <= units; k++ {
		p := defaultParams()
		p.KFolds = k
		folds, err := Split(w, domain.ValidationKFold, p)
		require.NoError(t, err, "k=%d", k)
		require.Len(t, folds, k, "k=%d", k)
		assertTestsPartition(t, w, w.Start, folds)
		assertTrainDisjoint(t, folds)
	}
}

func TestSplit_KFold_ReducedToDayUnits(t *testing.T) {
	w := window(0, 3)
	folds, err := Split(w, domain.ValidationKFold, defaultParams())
	require.NoError(t, err)
	assert.Len(t, folds, 3)
	assertTestsPartition(t, w, w.Start, folds)

	// menos de un día: un único fold, nunca error
	short := domain.Window{Start: base, End: base.Add(12 * time.Hour)}
	folds, err = Split(short, domain.ValidationKFold, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 1)
	assert.Equal(t, short, folds[0].Test)
}

func TestSplit_WalkForward(t *testing.T) {
	w := window(0, 30)
	folds, err := Split(w, domain.ValidationWalkForward, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 4)

	assertTestsPartition(t, w, at(7), folds)
	assertTrainDisjoint(t, folds)
	for _, f := range folds {
		require.Len(t, f.Train, 1)
		assert.Equal(t, w.Start, f.Train[0].Start)
		assert.Equal(t, f.Test.Start, f.Train[0].End, "train must end where test starts")
	}
	// el último test queda truncado al final de la ventana
	assert.Equal(t, window(28, 30), folds[3].Test)
}

func TestSplit_WalkForward_WindowLongerThanRange(t *testing.T) {
	w := window(0, 5)
	folds, err := Split(w, domain.ValidationWalkForward, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 1)
	assert.Equal(t, window(2.5, 5), folds[0].Test)
	assert.Equal(t, []domain.Window{window(0, 2.5)}, folds[0].Train)
}

func TestSplit_LeaveOneOut(t *testing.T) {
	w := window(0, 10)
	folds, err := Split(w, domain.ValidationLeaveOneOut, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 10)
	assertTestsPartition(t, w, w.Start, folds)
	assertTrainDisjoint(t, folds)
	for i, f := range folds {
		assert.Equal(t, window(float64(i), float64(i+1)), f.Test)
	}
}

func TestSplit_LeaveOneOut_Capped(t *testing.T) {
	w := window(0, 100)
	folds, err := Split(w, domain.ValidationLeaveOneOut, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, DefaultMaxLeaveOneOutFolds)
	assertTestsPartition(t, w, w.Start, folds)
}

func TestSplit_LeaveOneOut_PartialLastDay(t *testing.T) {
	w := domain.Window{Start: base, End: at(2).Add(6 * time.Hour)}
	folds, err := Split(w, domain.ValidationLeaveOneOut, defaultParams())
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, 6*time.Hour, folds[2].Test.Duration())
}

func TestSplit_Deterministic(t *testing.T) {
	w := domain.Window{Start: base, End: base.Add(17*day + 5*time.Hour + 3)}
	for _, m := range []domain.ValidationMethod{
		domain.ValidationNone, domain.ValidationTrainTest, domain.ValidationKFold,
		domain.ValidationWalkForward, domain.ValidationLeaveOneOut,
	} {
		a, err := Split(w, m, defaultParams())
		require.NoError(t, err)
		b, err := Split(w, m, defaultParams())
		require.NoError(t, err)
		assert.Equal(t, a, b, "method %s", m)
	}
}

func TestSplit_Errors(t *testing.T) {
	_, err := Split(domain.Window{Start: base, End: base}, domain.ValidationNone, defaultParams())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = Split(window(0, 10), domain.ValidationMethod("BOOTSTRAP"), defaultParams())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	p := defaultParams()
	p.TrainTestSplit = 1.2
	_, err = Split(window(0, 10), domain.ValidationTrainTest, p)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRequestedFolds(t *testing.T) {
	cfg := domain.BacktestConfig{Start: at(0), End: at(30)}.WithDefaults()
	assert.Equal(t, 1, RequestedFolds(cfg))

	cfg.Method = domain.ValidationKFold
	assert.Equal(t, 5, RequestedFolds(cfg))

	cfg.Method = domain.ValidationLeaveOneOut
	assert.Equal(t, 30, RequestedFolds(cfg))

	cfg.Method = domain.ValidationWalkForward
	assert.Equal(t, 4, RequestedFolds(cfg))
}
