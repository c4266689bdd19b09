package domain

import "time"

// Trade representa un trade histórico de un wallet en un mercado.
type Trade struct {
	ID        string
	MarketID  string // condition_id
	AssetID   string // token_id del outcome
	Wallet    string
	Side      string // "BUY" o "SELL"
	Outcome   string // "Yes" o "No"
	Price     float64
	Size      float64
	Timestamp time.Time
	TxHash    string
}

// ValueUSD devuelve el nocional del trade en USDC.
func (t Trade) ValueUSD() float64 {
	return t.Price * t.Size
}

// Wallet es la metadata conocida de una dirección.
type Wallet struct {
	Address     string
	FirstSeen   time.Time
	TradeCount  int
	TotalVolume float64
	Flagged     bool   // marcado previamente como sospechoso
	Label       string // etiqueta libre (exchange, market maker, ...)
}

// AgeAt devuelve la antigüedad del wallet en el instante dado.
// Devuelve 0 si FirstSeen no se conoce.
func (w Wallet) AgeAt(at time.Time) time.Duration {
	if w.FirstSeen.IsZero() || at.Before(w.FirstSeen) {
		return 0
	}
	return at.Sub(w.FirstSeen)
}

// Alert es una alerta histórica emitida por el monitor.
type Alert struct {
	ID            string
	WalletAddress string
	MarketID      string
	SignalType    string
	Severity      string
	CreatedAt     time.Time
}
