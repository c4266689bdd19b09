package backtest

// cache.go: caché de datasets históricos compartida entre backtests.
//
// La clave es (fuentes normalizadas, inicio, fin). Las entradas caducan por
// TTL y, al superar MaxEntries, se expulsa la menos usada. Dos cargas
// concurrentes de la misma clave comparten un único fetch (singleflight).
// Los datasets son inmutables, así que expulsar una entrada nunca afecta a
// un backtest que ya la está leyendo.

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Defaults de la caché.
const (
	DefaultCacheTTL        = 30 * time.Minute
	DefaultCacheMaxEntries = 32
)

// LoadRequest es una petición de dataset.
type LoadRequest struct {
	RequestID   string // solo para logs
	Sources     []domain.DataSourceKind
	Start       time.Time
	End         time.Time
	BypassCache bool
}

// LoadInfo describe cómo se resolvió una carga.
type LoadInfo struct {
	Key      string
	CacheHit bool
	Shared   bool // el fetch lo hizo otra carga concurrente
}

// CacheStats son los contadores acumulados de la caché.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Fetches   int64
	Entries   int
}

type cacheEntry struct {
	key      string
	dataset  *domain.HistoricalDataset
	storedAt time.Time
}

// DatasetCache carga datasets desde Sources y los memoiza.
type DatasetCache struct {
	sources  Sources
	recorder Recorder
	now      func() time.Time
	group    singleflight.Group

	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	lru        *list.List // frente = más reciente
	stats      CacheStats
}

// NewDatasetCache crea una caché vacía. ttl <= 0 y maxEntries <= 0 usan los defaults.
func NewDatasetCache(sources Sources, ttl time.Duration, maxEntries int, rec Recorder) *DatasetCache {
	if rec == nil {
		rec = nopRecorder{}
	}
	c := &DatasetCache{
		sources:  sources,
		recorder: rec,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
	c.SetLimits(ttl, maxEntries)
	return c
}

// cacheKey es la clave canónica de un dataset.
func cacheKey(sources []domain.DataSourceKind, start, end time.Time) string {
	return fmt.Sprintf("%s|%d|%d", domain.SourcesKey(sources), start.UnixNano(), end.UnixNano())
}

// Load devuelve el dataset pedido, desde caché si hay una entrada vigente.
// Un dataset en el que falló alguna fuente se devuelve pero no se cachea.
// Si el ctx del llamador se cancela mientras espera un fetch compartido,
// Load retorna ctx.Err() sin abortar el fetch para los demás.
func (c *DatasetCache) Load(ctx context.Context, req LoadRequest) (*domain.HistoricalDataset, LoadInfo, error) {
	if !req.Start.Before(req.End) {
		return nil, LoadInfo{}, fmt.Errorf("backtest.Load: %w: empty window", domain.ErrInvalidConfig)
	}
	sources := req.Sources
	if len(sources) == 0 {
		sources = domain.AllSourceKinds()
	}
	sources = domain.NormalizeSources(sources)
	w := domain.Window{Start: req.Start, End: req.End}
	key := cacheKey(sources, req.Start, req.End)
	info := LoadInfo{Key: key}

	if req.BypassCache {
		c.countMiss()
		ds := c.fetch(ctx, req.RequestID, sources, w)
		if err := ctx.Err(); err != nil {
			return nil, info, err
		}
		c.store(key, ds)
		return ds, info, nil
	}

	if ds, ok := c.lookup(key); ok {
		slog.Debug("dataset cache hit", "backtest_id", req.RequestID, "key", key)
		info.CacheHit = true
		return ds, info, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Otra carga pudo llenar la entrada entre el lookup y el DoChan.
		if ds, ok := c.peek(key); ok {
			return ds, nil
		}
		ds := c.fetch(context.WithoutCancel(ctx), req.RequestID, sources, w)
		c.store(key, ds)
		return ds, nil
	})

	select {
	case <-ctx.Done():
		return nil, info, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, info, res.Err
		}
		info.Shared = res.Shared
		return res.Val.(*domain.HistoricalDataset), info, nil
	}
}

func (c *DatasetCache) fetch(ctx context.Context, requestID string, sources []domain.DataSourceKind, w domain.Window) *domain.HistoricalDataset {
	c.mu.Lock()
	c.stats.Fetches++
	c.mu.Unlock()

	start := time.Now()
	ds := fetchDataset(ctx, c.sources, sources, w, c.recorder, c.now())
	slog.Debug("dataset fetched",
		"backtest_id", requestID,
		"sources", domain.SourcesKey(sources),
		"failed", len(ds.Failed()),
		"quality", ds.Quality(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return ds
}

// lookup busca una entrada vigente y actualiza los contadores.
func (c *DatasetCache) lookup(key string) (*domain.HistoricalDataset, bool) {
	ds, ok := c.peek(key)
	c.mu.Lock()
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.mu.Unlock()
	c.recorder.CacheLookup(ok)
	return ds, ok
}

func (c *DatasetCache) countMiss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	c.recorder.CacheLookup(false)
}

// peek busca una entrada vigente sin tocar los contadores. Las entradas
// caducadas se eliminan al encontrarlas.
func (c *DatasetCache) peek(key string) (*domain.HistoricalDataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if c.now().Sub(e.storedAt) > c.ttl {
		c.lru.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return e.dataset, true
}

func (c *DatasetCache) store(key string, ds *domain.HistoricalDataset) {
	if ds.Degraded() {
		slog.Debug("degraded dataset not cached", "key", key, "failed", ds.Failed())
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = &cacheEntry{key: key, dataset: ds, storedAt: c.now()}
		c.lru.MoveToFront(el)
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, dataset: ds, storedAt: c.now()})
	c.evictLocked()
}

func (c *DatasetCache) evictLocked() {
	for c.lru.Len() > c.maxEntries {
		el := c.lru.Back()
		e := el.Value.(*cacheEntry)
		c.lru.Remove(el)
		delete(c.entries, e.key)
		c.stats.Evictions++
		c.recorder.CacheEviction()
	}
}

// SetLimits cambia TTL y capacidad. Si la capacidad baja, expulsa al momento.
func (c *DatasetCache) SetLimits(ttl time.Duration, maxEntries int) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
	c.maxEntries = maxEntries
	c.evictLocked()
}

// Clear vacía la caché. Los contadores se conservan.
func (c *DatasetCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Stats devuelve una copia de los contadores.
func (c *DatasetCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	return s
}
