package strategy

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Umbrales de WHALE_DETECTION.
const (
	ThresholdMinTradeUSD = "min_trade_usd"
	ThresholdMinTotalUSD = "min_total_usd"
	ThresholdMinScore    = "min_score"
)

// Whale marca wallets que mueven mucho nocional en un mercado.
type Whale struct{}

// NewWhale crea el evaluador de ballenas.
func NewWhale() *Whale { return &Whale{} }

// Evaluate implementa ports.StrategyEvaluator.
func (w *Whale) Evaluate(_ context.Context, unit domain.DataUnit, th domain.Thresholds) (domain.Prediction, error) {
	minTrade := th.Get(ThresholdMinTradeUSD, 10_000)
	minTotal := th.Get(ThresholdMinTotalUSD, 25_000)

	largest := unit.MaxTradeValueUSD()
	total := unit.TotalValueUSD()

	score := max(ratio(largest, minTrade), ratio(total, minTotal))
	reason := fmt.Sprintf("largest trade $%.0f, total $%.0f", largest, total)
	return predict(score, th.Get(ThresholdMinScore, 1), reason), nil
}
