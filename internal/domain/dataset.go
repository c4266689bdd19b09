package domain

import (
	"math"
	"slices"
	"sort"
	"strings"
	"time"
)

// DataSourceKind es cada tipo de dato histórico que se puede pedir por separado.
type DataSourceKind string

const (
	SourceTrades      DataSourceKind = "TRADES"
	SourceMarkets     DataSourceKind = "MARKETS"
	SourceWallets     DataSourceKind = "WALLETS"
	SourceResolutions DataSourceKind = "RESOLUTIONS"
	SourceAlerts      DataSourceKind = "ALERTS"
)

// AllSourceKinds devuelve todas las fuentes en orden canónico.
func AllSourceKinds() []DataSourceKind {
	return []DataSourceKind{SourceTrades, SourceMarkets, SourceWallets, SourceResolutions, SourceAlerts}
}

// Valid devuelve true si la fuente es conocida.
func (k DataSourceKind) Valid() bool {
	return slices.Contains(AllSourceKinds(), k)
}

// NormalizeSources devuelve las fuentes ordenadas y sin duplicados.
func NormalizeSources(kinds []DataSourceKind) []DataSourceKind {
	out := slices.Clone(kinds)
	slices.Sort(out)
	return slices.Compact(out)
}

// SourcesKey es la representación estable de un set de fuentes.
func SourcesKey(kinds []DataSourceKind) string {
	norm := NormalizeSources(kinds)
	parts := make([]string, len(norm))
	for i, k := range norm {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// Window es un intervalo de tiempo semiabierto [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains devuelve true si t cae dentro de [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration devuelve la longitud de la ventana.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// IsEmpty devuelve true si la ventana no cubre ningún instante.
func (w Window) IsEmpty() bool {
	return !w.Start.Before(w.End)
}

// DayUnits devuelve cuántos días (redondeando hacia arriba) cubre la ventana.
func (w Window) DayUnits() int {
	if w.IsEmpty() {
		return 0
	}
	return int(math.Ceil(w.Duration().Hours() / 24))
}

// DatasetParts son las piezas con las que se construye un HistoricalDataset.
type DatasetParts struct {
	Window      Window
	Sources     []DataSourceKind
	Trades      []Trade
	Markets     []Market
	Wallets     []Wallet
	Resolutions []Resolution
	Alerts      []Alert
	Failed      []DataSourceKind
	LoadedAt    time.Time
}

// HistoricalDataset es el bundle inmutable de datos de una ventana.
// Todos los accesores devuelven copias: un lector nunca puede alterar lo
// que ven otros backtests que comparten la misma entrada de caché.
type HistoricalDataset struct {
	window      Window
	sources     []DataSourceKind
	trades      []Trade // ordenados por Timestamp
	markets     []Market
	wallets     []Wallet
	resolutions []Resolution
	alerts      []Alert
	failed      []DataSourceKind
	quality     float64
	loadedAt    time.Time

	marketIdx      map[string]int
	walletIdx      map[string]int
	resolutionIdx  map[string]int
	alertsByWallet map[string][]int
}

// NewHistoricalDataset construye el dataset, ordena los trades, indexa la
// metadata y calcula el quality score.
func NewHistoricalDataset(p DatasetParts) *HistoricalDataset {
	trades := slices.Clone(p.Trades)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})

	ds := &HistoricalDataset{
		window:         p.Window,
		sources:        NormalizeSources(p.Sources),
		trades:         trades,
		markets:        slices.Clone(p.Markets),
		wallets:        slices.Clone(p.Wallets),
		resolutions:    slices.Clone(p.Resolutions),
		alerts:         slices.Clone(p.Alerts),
		failed:         NormalizeSources(p.Failed),
		loadedAt:       p.LoadedAt,
		marketIdx:      make(map[string]int, len(p.Markets)),
		walletIdx:      make(map[string]int, len(p.Wallets)),
		resolutionIdx:  make(map[string]int, len(p.Resolutions)),
		alertsByWallet: make(map[string][]int),
	}
	for i, m := range ds.markets {
		ds.marketIdx[m.ConditionID] = i
	}
	for i, w := range ds.wallets {
		ds.walletIdx[strings.ToLower(w.Address)] = i
	}
	for i, r := range ds.resolutions {
		ds.resolutionIdx[r.MarketID] = i
	}
	for i, a := range ds.alerts {
		key := strings.ToLower(a.WalletAddress)
		ds.alertsByWallet[key] = append(ds.alertsByWallet[key], i)
	}
	ds.quality = QualityScore(ds.sources, ds.failed, ds.trades, ds.window)
	return ds
}

// QualityScore estima la completitud del dataset en [0,100]:
// 70 puntos por la fracción de fuentes obtenidas y 30 por la cobertura
// diaria de trades (1 si no se pidieron trades).
func QualityScore(requested, failed []DataSourceKind, trades []Trade, w Window) float64 {
	if len(requested) == 0 {
		return 0
	}
	ok := 0
	for _, k := range requested {
		if !slices.Contains(failed, k) {
			ok++
		}
	}
	sourceRatio := float64(ok) / float64(len(requested))

	coverage := 1.0
	if slices.Contains(requested, SourceTrades) {
		coverage = tradeDayCoverage(trades, w)
	}
	return clamp(70*sourceRatio+30*coverage, 0, 100)
}

// tradeDayCoverage devuelve la fracción de días de la ventana con al menos un trade.
func tradeDayCoverage(trades []Trade, w Window) float64 {
	days := w.DayUnits()
	if days == 0 {
		return 0
	}
	seen := make(map[int]bool, days)
	for _, t := range trades {
		if !w.Contains(t.Timestamp) {
			continue
		}
		seen[int(t.Timestamp.Sub(w.Start)/(24*time.Hour))] = true
	}
	return float64(len(seen)) / float64(days)
}

func (d *HistoricalDataset) Window() Window { return d.window }
func (d *HistoricalDataset) Sources() []DataSourceKind { return slices.Clone(d.sources) }
func (d *HistoricalDataset) Failed() []DataSourceKind { return slices.Clone(d.failed) }
func (d *HistoricalDataset) Degraded() bool { return len(d.failed) > 0 }
func (d *HistoricalDataset) Quality() float64 { return d.quality }
func (d *HistoricalDataset) LoadedAt() time.Time { return d.loadedAt }
func (d *HistoricalDataset) Trades() []Trade { return slices.Clone(d.trades) }
func (d *HistoricalDataset) Markets() []Market { return slices.Clone(d.markets) }
func (d *HistoricalDataset) Wallets() []Wallet { return slices.Clone(d.wallets) }
func (d *HistoricalDataset) Resolutions() []Resolution { return slices.Clone(d.resolutions) }
func (d *HistoricalDataset) Alerts() []Alert { return slices.Clone(d.alerts) }

// AllFailed devuelve true si ninguna de las fuentes pedidas devolvió datos.
func (d *HistoricalDataset) AllFailed() bool {
	return len(d.sources) > 0 && len(d.failed) >= len(d.sources)
}

// TradesIn devuelve una copia de los trades dentro de la ventana w.
func (d *HistoricalDataset) TradesIn(w Window) []Trade {
	lo := sort.Search(len(d.trades), func(i int) bool {
		return !d.trades[i].Timestamp.Before(w.Start)
	})
	hi := sort.Search(len(d.trades), func(i int) bool {
		return !d.trades[i].Timestamp.Before(w.End)
	})
	if lo >= hi {
		return nil
	}
	return slices.Clone(d.trades[lo:hi])
}

// Market busca la metadata de un mercado por condition_id.
func (d *HistoricalDataset) Market(id string) (Market, bool) {
	i, ok := d.marketIdx[id]
	if !ok {
		return Market{}, false
	}
	return d.markets[i], true
}

// Wallet busca la metadata de un wallet (sin distinguir mayúsculas).
func (d *HistoricalDataset) Wallet(address string) (Wallet, bool) {
	i, ok := d.walletIdx[strings.ToLower(address)]
	if !ok {
		return Wallet{}, false
	}
	return d.wallets[i], true
}

// Resolution busca la resolución de un mercado.
func (d *HistoricalDataset) Resolution(marketID string) (Resolution, bool) {
	i, ok := d.resolutionIdx[marketID]
	if !ok {
		return Resolution{}, false
	}
	return d.resolutions[i], true
}

// AlertsForWallet devuelve las alertas emitidas sobre un wallet.
func (d *HistoricalDataset) AlertsForWallet(address string) []Alert {
	idx := d.alertsByWallet[strings.ToLower(address)]
	out := make([]Alert, 0, len(idx))
	for _, i := range idx {
		out = append(out, d.alerts[i])
	}
	return out
}

// RowCounts devuelve el número de filas por fuente pedida.
func (d *HistoricalDataset) RowCounts() map[DataSourceKind]int {
	counts := make(map[DataSourceKind]int, len(d.sources))
	for _, k := range d.sources {
		switch k {
		case SourceTrades:
			counts[k] = len(d.trades)
		case SourceMarkets:
			counts[k] = len(d.markets)
		case SourceWallets:
			counts[k] = len(d.wallets)
		case SourceResolutions:
			counts[k] = len(d.resolutions)
		case SourceAlerts:
			counts[k] = len(d.alerts)
		}
	}
	return counts
}

// DatasetInfo es la procedencia del dataset incluida en el reporte.
type DatasetInfo struct {
	Start        time.Time
	End          time.Time
	Sources      []DataSourceKind
	Failed       []DataSourceKind
	QualityScore float64
	Rows         map[DataSourceKind]int
	LoadedAt     time.Time
}

// Info resume la procedencia del dataset.
func (d *HistoricalDataset) Info() DatasetInfo {
	return DatasetInfo{
		Start:        d.window.Start,
		End:          d.window.End,
		Sources:      d.Sources(),
		Failed:       d.Failed(),
		QualityScore: d.quality,
		Rows:         d.RowCounts(),
		LoadedAt:     d.loadedAt,
	}
}
