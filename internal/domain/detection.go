package domain

import (
	"sort"
	"time"
)

// MarketBaseline resume la actividad de un mercado en las ventanas de train.
// Sirve de referencia a los evaluadores que comparan contra "lo normal".
type MarketBaseline struct {
	TradeCount    int
	WalletCount   int
	AvgTradeValue float64
	TotalValue    float64
	AvgPrice      float64
}

// DataUnit es la unidad que recibe un evaluador: la actividad de un wallet
// en un mercado dentro de la ventana de test de un fold.
type DataUnit struct {
	MarketID      string
	WalletAddress string
	Window        Window
	Trades        []Trade // cronológicos

	Market    Market
	HasMarket bool
	Wallet    Wallet
	HasWallet bool

	Baseline MarketBaseline

	// MarketWallets es el número de wallets distintos que operaron el mismo
	// mercado en la ventana de test (útil para trading coordinado).
	MarketWallets int
}

// FirstTradeAt devuelve el timestamp del primer trade de la unidad.
func (u DataUnit) FirstTradeAt() time.Time {
	if len(u.Trades) == 0 {
		return time.Time{}
	}
	return u.Trades[0].Timestamp
}

// TotalValueUSD devuelve el nocional total operado.
func (u DataUnit) TotalValueUSD() float64 {
	total := 0.0
	for _, t := range u.Trades {
		total += t.ValueUSD()
	}
	return total
}

// MaxTradeValueUSD devuelve el nocional del mayor trade.
func (u DataUnit) MaxTradeValueUSD() float64 {
	best := 0.0
	for _, t := range u.Trades {
		if v := t.ValueUSD(); v > best {
			best = v
		}
	}
	return best
}

// NetPositions devuelve el nocional neto comprado por outcome (BUY suma, SELL resta).
func (u DataUnit) NetPositions() map[string]float64 {
	pos := make(map[string]float64, 2)
	for _, t := range u.Trades {
		if t.Side == "SELL" {
			pos[t.Outcome] -= t.ValueUSD()
		} else {
			pos[t.Outcome] += t.ValueUSD()
		}
	}
	return pos
}

// DominantOutcome devuelve el outcome con mayor posición neta positiva y su nocional.
// Devuelve "" si el wallet no quedó largo en ningún outcome.
func (u DataUnit) DominantOutcome() (string, float64) {
	pos := u.NetPositions()
	outcomes := make([]string, 0, len(pos))
	for o := range pos {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)

	best, bestValue := "", 0.0
	for _, o := range outcomes {
		if pos[o] > bestValue {
			best, bestValue = o, pos[o]
		}
	}
	return best, bestValue
}

// Prediction es la salida de un evaluador para una unidad.
type Prediction struct {
	Positive       bool
	Confidence     float64 // [0,1]
	SuspicionScore float64 // [0,100]
	Reason         string
}

// Normalized devuelve la predicción con confianza y score acotados.
func (p Prediction) Normalized() Prediction {
	p.Confidence = clamp(p.Confidence, 0, 1)
	p.SuspicionScore = clamp(p.SuspicionScore, 0, 100)
	return p
}

// DetectionResult es una detección simulada con su ground truth, si existe.
type DetectionResult struct {
	MarketID       string
	WalletAddress  string
	Strategy       string
	Timestamp      time.Time
	Predicted      bool
	Confidence     float64
	SuspicionScore float64
	Reason         string

	Labeled bool // hay ground truth para esta unidad
	Actual  bool // ground truth (solo válido si Labeled)

	EvaluatorError string // no vacío si el evaluador falló y se contó como negativo
	Fold           int
}

// Outcome clasifica la detección en la matriz de confusión.
// Devuelve false si la detección no tiene ground truth.
func (d DetectionResult) Outcome() (ConfusionOutcome, bool) {
	if !d.Labeled {
		return 0, false
	}
	switch {
	case d.Predicted && d.Actual:
		return TruePositive, true
	case d.Predicted && !d.Actual:
		return FalsePositive, true
	case !d.Predicted && !d.Actual:
		return TrueNegative, true
	default:
		return FalseNegative, true
	}
}
