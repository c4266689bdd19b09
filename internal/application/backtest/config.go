package backtest

import (
	"fmt"
	"time"
)

// LimitPolicy decide qué pasa con un backtest que excede el límite de concurrencia.
type LimitPolicy string

const (
	LimitReject LimitPolicy = "reject"
	LimitQueue  LimitPolicy = "queue"
)

// Defaults del framework.
const (
	DefaultMaxConcurrentBacktests = 4
	DefaultFoldParallelism        = 2
	DefaultHandleRetention        = 10 * time.Minute
)

// Config son los parámetros de ejecución del framework.
type Config struct {
	MaxConcurrentBacktests int
	OnLimit                LimitPolicy
	FoldParallelism        int
	CacheTTL               time.Duration
	CacheMaxEntries        int
	MaxLeaveOneOutFolds    int
	HandleRetention        time.Duration
	Labels                 LabelPolicy
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentBacktests: DefaultMaxConcurrentBacktests,
		OnLimit:                LimitReject,
		FoldParallelism:        DefaultFoldParallelism,
		CacheTTL:               DefaultCacheTTL,
		CacheMaxEntries:        DefaultCacheMaxEntries,
		MaxLeaveOneOutFolds:    DefaultMaxLeaveOneOutFolds,
		HandleRetention:        DefaultHandleRetention,
		Labels:                 DefaultLabelPolicy(),
	}
}

// withDefaults rellena los campos cero. Una LabelPolicy cero (sin ninguna
// señal) se reemplaza por la de defecto.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Labels == (LabelPolicy{}) {
		c.Labels = d.Labels
	}
	if c.MaxConcurrentBacktests <= 0 {
		c.MaxConcurrentBacktests = d.MaxConcurrentBacktests
	}
	if c.OnLimit == "" {
		c.OnLimit = d.OnLimit
	}
	if c.FoldParallelism <= 0 {
		c.FoldParallelism = d.FoldParallelism
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = d.CacheMaxEntries
	}
	if c.MaxLeaveOneOutFolds <= 0 {
		c.MaxLeaveOneOutFolds = d.MaxLeaveOneOutFolds
	}
	if c.HandleRetention <= 0 {
		c.HandleRetention = d.HandleRetention
	}
	return c
}

func (c Config) validate() error {
	if c.OnLimit != LimitReject && c.OnLimit != LimitQueue {
		return fmt.Errorf("backtest.Config: unknown on-limit policy %q", c.OnLimit)
	}
	return nil
}

// ConfigPatch es una actualización parcial; los campos nil no cambian.
type ConfigPatch struct {
	MaxConcurrentBacktests *int
	OnLimit                *LimitPolicy
	FoldParallelism        *int
	CacheTTL               *time.Duration
	CacheMaxEntries        *int
	MaxLeaveOneOutFolds    *int
	HandleRetention        *time.Duration
	Labels                 *LabelPolicy
}

func (p ConfigPatch) apply(c Config) Config {
	if p.MaxConcurrentBacktests != nil {
		c.MaxConcurrentBacktests = *p.MaxConcurrentBacktests
	}
	if p.OnLimit != nil {
		c.OnLimit = *p.OnLimit
	}
	if p.FoldParallelism != nil {
		c.FoldParallelism = *p.FoldParallelism
	}
	if p.CacheTTL != nil {
		c.CacheTTL = *p.CacheTTL
	}
	if p.CacheMaxEntries != nil {
		c.CacheMaxEntries = *p.CacheMaxEntries
	}
	if p.MaxLeaveOneOutFolds != nil {
		c.MaxLeaveOneOutFolds = *p.MaxLeaveOneOutFolds
	}
	if p.HandleRetention != nil {
		c.HandleRetention = *p.HandleRetention
	}
	if p.Labels != nil {
		c.Labels = *p.Labels
	}
	return c.withDefaults()
}
