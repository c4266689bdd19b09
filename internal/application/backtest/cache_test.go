package backtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

func loadReq(from, to float64, kinds ...domain.DataSourceKind) LoadRequest {
	return LoadRequest{RequestID: "test", Sources: kinds, Start: at(from), End: at(to)}
}

func TestDatasetCache_HitAvoidsFetch(t *testing.T) {
	h := seededHistory()
	rec := &recordingRecorder{}
	c := NewDatasetCache(h.sources(), time.Hour, 10, rec)

	ds1, info1, err := c.Load(context.Background(), loadReq(0, 10))
	require.NoError(t, err)
	assert.False(t, info1.CacheHit)

	ds2, info2, err := c.Load(context.Background(), loadReq(0, 10))
	require.NoError(t, err)
	assert.True(t, info2.CacheHit)
	assert.Same(t, ds1, ds2)

	assert.EqualValues(t, 1, h.tradeCalls.Load())
	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Fetches)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, rec.hits)
}

func TestDatasetCache_KeyIncludesSourcesAndWindow(t *testing.T) {
	h := seededHistory()
	c := NewDatasetCache(h.sources(), time.Hour, 10, nil)
	ctx := context.Background()

	_, _, err := c.Load(ctx, loadReq(0, 10, domain.SourceTrades, domain.SourceMarkets))
	require.NoError(t, err)
	// mismo set en otro orden y con duplicados: misma clave
	_, info, err := c.Load(ctx, loadReq(0, 10, domain.SourceMarkets, domain.SourceTrades, domain.SourceTrades))
	require.NoError(t, err)
	assert.True(t, info.CacheHit)

	_, info, err = c.Load(ctx, loadReq(0, 10, domain.SourceTrades))
	require.NoError(t, err)
	assert.False(t, info.CacheHit)

	_, info, err = c.Load(ctx, loadReq(0, 9, domain.SourceTrades, domain.SourceMarkets))
	require.NoError(t, err)
	assert.False(t, info.CacheHit)

	assert.EqualValues(t, 3, h.tradeCalls.Load())
}

func TestDatasetCache_TTLExpiry(t *testing.T) {
	h := seededHistory()
	c := NewDatasetCache(h.sources(), time.Minute, 10, nil)
	now := base
	c.now = func() time.Time { return now }

	_, _, err := c.Load(context.Background(), loadReq(0, 10))
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, info, err := c.Load(context.Background(), loadReq(0, 10))
	require.NoError(t, err)
	assert.True(t, info.CacheHit)

	now = now.Add(2 * time.Minute)
	_, info, err = c.Load(context.Background(), loadReq(0, 10))
	require.NoError(t, err)
	assert.False(t, info.CacheHit)
	assert.EqualValues(t, 2, h.tradeCalls.Load())
}

func TestDatasetCache_LRUEviction(t *testing.T) {
	h := seededHistory()
	rec := &recordingRecorder{}
	c := NewDatasetCache(h.sources(), time.Hour, 2, rec)
	ctx := context.Background()

	_, _, _ = c.Load(ctx, loadReq(0, 1))
	_, _, _ = c.Load(ctx, loadReq(0, 2))
	// tocar la primera para que la menos usada sea la segunda
	_, info, _ := c.Load(ctx, loadReq(0, 1))
	require.True(t, info.CacheHit)
	_, _, _ = c.Load(ctx, loadReq(0, 3))

	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.EqualValues(t, 1, stats.Evictions)
	assert.Equal(t, 1, rec.evictions)

	_, info, _ = c.Load(ctx, loadReq(0, 1))
	assert.True(t, info.CacheHit)
	_, info, _ = c.Load(ctx, loadReq(0, 2))
	assert.False(t, info.CacheHit, "least recently used entry should have been evicted")
}

func TestDatasetCache_BypassAlwaysFetches(t *testing.T) {
	h := seededHistory()
	c := NewDatasetCache(h.sources(), time.Hour, 10, nil)
	ctx := context.Background()

	_, _, err := c.Load(ctx, loadReq(0, 10))
	require.NoError(t, err)

	req := loadReq(0, 10)
	req.BypassCache = true
	_, info, err := c.Load(ctx, req)
	require.NoError(t, err)
	assert.False(t, info.CacheHit)
	assert.EqualValues(t, 2, h.tradeCalls.Load())

	// la entrada refrescada sigue sirviendo a cargas normales
	_, info, err = c.Load(ctx, loadReq(0, 10))
	require.NoError(t, err)
	assert.True(t, info.CacheHit)
}

func TestDatasetCache_DegradedNotCached(t *testing.T) {
	h := seededHistory()
	h.fail[domain.SourceAlerts] = errSourceDown
	rec := &recordingRecorder{}
	c := NewDatasetCache(h.sources(), time.Hour, 10, rec)
	ctx := context.Background()

	ds, _, err := c.Load(ctx, loadReq(0, 10))
	require.NoError(t, err)
	assert.True(t, ds.Degraded())
	assert.False(t, ds.AllFailed())
	assert.Equal(t, []domain.DataSourceKind{domain.SourceAlerts}, ds.Failed())
	assert.Less(t, ds.Quality(), 100.0)
	assert.NotEmpty(t, ds.Trades(), "healthy sources must still be served")
	assert.Equal(t, 1, rec.sourceErrors)

	_, info, err := c.Load(ctx, loadReq(0, 10))
	require.NoError(t, err)
	assert.False(t, info.CacheHit)
	assert.EqualValues(t, 2, h.tradeCalls.Load())
}

func TestDatasetCache_MissingProviderCountsAsFailure(t *testing.T) {
	h := seededHistory()
	src := h.sources()
	src.Alerts = nil
	c := NewDatasetCache(src, time.Hour, 10, nil)

	ds, _, err := c.Load(context.Background(), loadReq(0, 10, domain.SourceTrades, domain.SourceAlerts))
	require.NoError(t, err)
	assert.Equal(t, []domain.DataSourceKind{domain.SourceAlerts}, ds.Failed())
}

func TestDatasetCache_AllSourcesFailed(t *testing.T) {
	h := newFakeHistory()
	for _, k := range domain.AllSourceKinds() {
		h.fail[k] = errSourceDown
	}
	c := NewDatasetCache(h.sources(), time.Hour, 10, nil)

	ds, _, err := c.Load(context.Background(), loadReq(0, 10))
	require.NoError(t, err)
	assert.True(t, ds.AllFailed())
	assert.InDelta(t, 0.0, ds.Quality(), 1e-9)
}

func TestDatasetCache_QualityScore(t *testing.T) {
	h := newFakeHistory()
	// trades solo en 5 de 10 días
	for d := 0; d < 5; d++ {
		h.trades = append(h.trades, trade("m1", "0xa", "Yes", 0.5, 10, at(float64(d)+0.5)))
	}
	c := NewDatasetCache(h.sources(), time.Hour, 10, nil)

	ds, _, err := c.Load(context.Background(), loadReq(0, 10))
	require.NoError(t, err)
	assert.InDelta(t, 70+30*0.5, ds.Quality(), 1e-9)
}

func TestDatasetCache_ConcurrentLoadsShareFetch(t *testing.T) {
	h := seededHistory()
	h.gate = make(chan struct{})
	h.started = make(chan struct{}, 1)
	c := NewDatasetCache(h.sources(), time.Hour, 10, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*domain.HistoricalDataset, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, _, err := c.Load(context.Background(), loadReq(0, 10))
			assert.NoError(t, err)
			results[i] = ds
		}()
	}

	<-h.started
	// dar tiempo a que el resto de llamadas se unan al fetch en curso
	time.Sleep(20 * time.Millisecond)
	close(h.gate)
	wg.Wait()

	assert.EqualValues(t, 1, h.tradeCalls.Load())
	for _, ds := range results {
		assert.Same(t, results[0], ds)
	}
}

func TestDatasetCache_CallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	h := seededHistory()
	h.gate = make(chan struct{})
	h.started = make(chan struct{}, 1)
	c := NewDatasetCache(h.sources(), time.Hour, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := c.Load(ctx, loadReq(0, 10))
		errCh <- err
	}()
	<-h.started

	okCh := make(chan *domain.HistoricalDataset, 1)
	go func() {
		ds, _, err := c.Load(context.Background(), loadReq(0, 10))
		assert.NoError(t, err)
		okCh <- ds
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(h.gate)
	ds := <-okCh
	require.NotNil(t, ds)
	assert.NotEmpty(t, ds.Trades())
	assert.EqualValues(t, 1, h.tradeCalls.Load())
}

func TestDatasetCache_ClearAndSetLimits(t *testing.T) {
	h := seededHistory()
	c := NewDatasetCache(h.sources(), time.Hour, 10, nil)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		_, _, err := c.Load(ctx, loadReq(0, float64(i)))
		require.NoError(t, err)
	}
	assert.Equal(t, 4, c.Stats().Entries)

	c.SetLimits(time.Hour, 2)
	assert.Equal(t, 2, c.Stats().Entries)
	assert.EqualValues(t, 2, c.Stats().Evictions)

	c.Clear()
	assert.Equal(t, 0, c.Stats().Entries)
	_, info, err := c.Load(ctx, loadReq(0, 4))
	require.NoError(t, err)
	assert.False(t, info.CacheHit)
}

func TestDatasetCache_EmptyWindow(t *testing.T) {
	c := NewDatasetCache(seededHistory().sources(), time.Hour, 10, nil)
	_, _, err := c.Load(context.Background(), loadReq(5, 5))
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestDatasetCache_ReadersUnaffectedByEviction(t *testing.T) {
	h := seededHistory()
	c := NewDatasetCache(h.sources(), time.Hour, 1, nil)
	ctx := context.Background()

	ds, _, err := c.Load(ctx, loadReq(0, 10))
	require.NoError(t, err)
	before := len(ds.Trades())

	_, _, err = c.Load(ctx, loadReq(0, 5))
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Stats().Evictions)

	assert.Len(t, ds.Trades(), before)
	trades := ds.Trades()
	trades[0].Size = -1
	assert.NotEqual(t, -1.0, ds.Trades()[0].Size, "accessors must return copies")
}
