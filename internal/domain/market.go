package domain

import "time"

// Market representa un mercado de predicción binario en Polymarket.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	Category    string
	CreatedAt   time.Time
	EndDate     time.Time // fecha de resolución prevista
	Volume      float64   // volumen total en USDC
	Active      bool
	Closed      bool
}

// HoursToResolutionAt devuelve las horas entre at y el EndDate del mercado.
// Devuelve 0 si EndDate no está definido o ya pasó.
func (m Market) HoursToResolutionAt(at time.Time) float64 {
	if m.EndDate.IsZero() {
		return 0
	}
	h := m.EndDate.Sub(at).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// Resolution es el resultado final de un mercado cerrado.
type Resolution struct {
	MarketID       string
	WinningOutcome string // "Yes" | "No"
	ResolvedAt     time.Time
}
