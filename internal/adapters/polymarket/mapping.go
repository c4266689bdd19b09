package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// winningPrice es el precio mínimo de un outcome para considerarlo ganador.
const winningPrice = 0.99

// mapTrade convierte un trade de la Data API a domain.Trade.
func mapTrade(rt dataTrade) domain.Trade {
	price, _ := rt.Price.Float64()
	size, _ := rt.Size.Float64()
	ts := parseTimestamp(rt.Timestamp.String())

	id := rt.TransactionHash
	if id == "" {
		id = rt.ConditionID + ":" + rt.ProxyWallet + ":" + rt.Timestamp.String()
	}
	// Un mismo tx puede llenar varios outcomes.
	id += ":" + strconv.Itoa(rt.OutcomeIndex)

	return domain.Trade{
		ID:        id,
		MarketID:  rt.ConditionID,
		AssetID:   rt.Asset,
		Wallet:    strings.ToLower(rt.ProxyWallet),
		Side:      strings.ToUpper(rt.Side),
		Outcome:   rt.Outcome,
		Price:     price,
		Size:      size,
		Timestamp: ts,
		TxHash:    rt.TransactionHash,
	}
}

// mapMarket convierte un mercado de Gamma a domain.Market.
func mapMarket(gm gammaMarket) domain.Market {
	m := domain.Market{
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		Category:    gm.Category,
		Active:      gm.Active,
		Closed:      gm.Closed,
	}
	if v, err := gm.Volume.Float64(); err == nil {
		m.Volume = v
	}
	m.CreatedAt = parseDate(gm.CreatedAt)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = parseDate(gm.StartDate)
	}
	m.EndDate = parseDate(gm.EndDate)
	if m.EndDate.IsZero() {
		m.EndDate = parseDate(gm.EndDateISO)
	}
	return m
}

// mapResolution lee el ganador de un mercado cerrado: el outcome cuyo
// precio final es >= winningPrice. Devuelve false si no hay uno claro.
func mapResolution(gm gammaMarket) (domain.Resolution, bool) {
	if !gm.Closed || gm.ConditionID == "" {
		return domain.Resolution{}, false
	}
	var outcomes, prices []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &outcomes); err != nil {
		return domain.Resolution{}, false
	}
	if err := json.Unmarshal([]byte(gm.OutcomePrices), &prices); err != nil {
		return domain.Resolution{}, false
	}
	if len(outcomes) != len(prices) {
		return domain.Resolution{}, false
	}

	winner := ""
	for i, p := range prices {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return domain.Resolution{}, false
		}
		if v >= winningPrice {
			if winner != "" {
				return domain.Resolution{}, false
			}
			winner = outcomes[i]
		}
	}
	if winner == "" {
		return domain.Resolution{}, false
	}

	resolvedAt := parseDate(gm.ClosedTime)
	if resolvedAt.IsZero() {
		resolvedAt = parseDate(gm.EndDate)
	}
	return domain.Resolution{
		MarketID:       gm.ConditionID,
		WinningOutcome: winner,
		ResolvedAt:     resolvedAt,
	}, true
}

// WalletsFromTrades deriva la metadata básica de los wallets a partir de
// sus trades: primer trade visto, número de trades y volumen. La Data API
// no expone la antigüedad real del wallet.
func WalletsFromTrades(trades []domain.Trade) []domain.Wallet {
	byAddr := make(map[string]*domain.Wallet)
	for _, t := range trades {
		addr := strings.ToLower(t.Wallet)
		if addr == "" {
			continue
		}
		w, ok := byAddr[addr]
		if !ok {
			w = &domain.Wallet{Address: addr, FirstSeen: t.Timestamp}
			byAddr[addr] = w
		}
		if t.Timestamp.Before(w.FirstSeen) {
			w.FirstSeen = t.Timestamp
		}
		w.TradeCount++
		w.TotalVolume += t.ValueUSD()
	}

	wallets := make([]domain.Wallet, 0, len(byAddr))
	for _, w := range byAddr {
		wallets = append(wallets, *w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Address < wallets[j].Address })
	return wallets
}

// parseTimestamp acepta unix en segundos o milisegundos, o ISO.
func parseTimestamp(s string) time.Time {
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		if sec > 1e12 {
			return time.UnixMilli(sec).UTC()
		}
		return time.Unix(sec, 0).UTC()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
	return parseDate(s)
}

// parseDate prueba los formatos de fecha que usa Polymarket.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02 15:04:05-07",
		"2006-01-02 15:04:05.999999-07",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
