package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/polyguard/internal/domain"
	"github.com/alejandrodnm/polyguard/internal/ports"
)

// Registry mantiene los evaluadores disponibles indexados por nombre.
// Los tipos built-in se registran con el nombre del tipo (p.ej.
// "WHALE_DETECTION"); los CUSTOM con el CustomName de la estrategia.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]ports.StrategyEvaluator
}

// NewRegistry crea un registry vacío.
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[string]ports.StrategyEvaluator)}
}

// NewDefaultRegistry crea un registry con los evaluadores de referencia.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	whale := NewWhale()
	fresh := NewFreshWallet()
	volume := NewVolumeAnomaly()
	insider := NewInsider()
	coordinated := NewCoordinated()
	price := NewPriceManipulation()

	r.Register(string(domain.StrategyWhale), whale)
	r.Register(string(domain.StrategyFreshWallet), fresh)
	r.Register(string(domain.StrategyVolume), volume)
	r.Register(string(domain.StrategyInsider), insider)
	r.Register(string(domain.StrategyCoordinated), coordinated)
	r.Register(string(domain.StrategyPriceManip), price)
	r.Register(string(domain.StrategyComposite), NewComposite(insider, whale, fresh, volume, coordinated, price))
	return r
}

// Register añade (o reemplaza) un evaluador.
func (r *Registry) Register(name string, e ports.StrategyEvaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[name] = e
}

// RegisterFunc registra una función como evaluador CUSTOM.
func (r *Registry) RegisterFunc(name string, fn ports.EvaluatorFunc) {
	r.Register(name, fn)
}

// Get devuelve el evaluador por nombre.
func (r *Registry) Get(name string) (ports.StrategyEvaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluators[name]
	return e, ok
}

// Resolve devuelve el evaluador de una StrategyConfig.
func (r *Registry) Resolve(cfg domain.StrategyConfig) (ports.StrategyEvaluator, error) {
	name := cfg.EvaluatorName()
	e, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("strategy.Resolve: %q: %w", name, domain.ErrUnknownEvaluator)
	}
	return e, nil
}

// Names devuelve los nombres registrados ordenados.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.evaluators))
	for n := range r.evaluators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ratio devuelve v/threshold acotado a [0,1]; 0 si el umbral no es positivo.
func ratio(v, threshold float64) float64 {
	if threshold <= 0 || v <= 0 {
		return 0
	}
	return min(1, v/threshold)
}

// predict construye la Prediction a partir de un score en [0,1].
func predict(score, minScore float64, reason string) domain.Prediction {
	return domain.Prediction{
		Positive:       score >= minScore,
		Confidence:     score,
		SuspicionScore: score * 100,
		Reason:         reason,
	}.Normalized()
}
