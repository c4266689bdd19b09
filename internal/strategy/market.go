package strategy

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Umbrales de VOLUME_ANOMALY, COORDINATED_TRADING y PRICE_MANIPULATION.
const (
	ThresholdMultiplier   = "multiplier"
	ThresholdMinWallets   = "min_wallets"
	ThresholdMinPriceMove = "min_price_move"
)

// VolumeAnomaly compara el tamaño medio de los trades de la unidad con el
// baseline del mercado en las ventanas de train.
type VolumeAnomaly struct{}

// NewVolumeAnomaly crea el evaluador de anomalías de volumen.
func NewVolumeAnomaly() *VolumeAnomaly { return &VolumeAnomaly{} }

// Evaluate implementa ports.StrategyEvaluator.
func (v *VolumeAnomaly) Evaluate(_ context.Context, unit domain.DataUnit, th domain.Thresholds) (domain.Prediction, error) {
	if len(unit.Trades) == 0 || unit.Baseline.TradeCount == 0 || unit.Baseline.AvgTradeValue <= 0 {
		return domain.Prediction{Reason: "no baseline"}, nil
	}
	mult := th.Get(ThresholdMultiplier, 5)
	avg := unit.TotalValueUSD() / float64(len(unit.Trades))
	x := avg / unit.Baseline.AvgTradeValue

	reason := fmt.Sprintf("avg trade %.1fx baseline", x)
	return predict(ratio(x, mult), th.Get(ThresholdMinScore, 1), reason), nil
}

// Coordinated marca unidades en mercados donde muchos wallets operan en la
// misma ventana con tamaño relevante.
type Coordinated struct{}

// NewCoordinated crea el evaluador de trading coordinado.
func NewCoordinated() *Coordinated { return &Coordinated{} }

// Evaluate implementa ports.StrategyEvaluator.
func (c *Coordinated) Evaluate(_ context.Context, unit domain.DataUnit, th domain.Thresholds) (domain.Prediction, error) {
	minWallets := th.Get(ThresholdMinWallets, 10)
	minTotal := th.Get(ThresholdMinTotalUSD, 500)

	crowd := ratio(float64(unit.MarketWallets), minWallets)
	size := ratio(unit.TotalValueUSD(), minTotal)
	score := crowd * size

	reason := fmt.Sprintf("%d wallets on market, total $%.0f", unit.MarketWallets, unit.TotalValueUSD())
	return predict(score, th.Get(ThresholdMinScore, 1), reason), nil
}

// PriceManipulation marca wallets cuyos trades recorren mucho precio.
type PriceManipulation struct{}

// NewPriceManipulation crea el evaluador de manipulación de precio.
func NewPriceManipulation() *PriceManipulation { return &PriceManipulation{} }

// Evaluate implementa ports.StrategyEvaluator.
func (p *PriceManipulation) Evaluate(_ context.Context, unit domain.DataUnit, th domain.Thresholds) (domain.Prediction, error) {
	if len(unit.Trades) < 2 {
		return domain.Prediction{Reason: "single trade"}, nil
	}
	lo, hi := unit.Trades[0].Price, unit.Trades[0].Price
	for _, t := range unit.Trades[1:] {
		lo = min(lo, t.Price)
		hi = max(hi, t.Price)
	}
	move := hi - lo

	score := ratio(move, th.Get(ThresholdMinPriceMove, 0.10)) * ratio(unit.TotalValueUSD(), th.Get(ThresholdMinTotalUSD, 2_000))
	reason := fmt.Sprintf("price moved %.3f across %d trades", move, len(unit.Trades))
	return predict(score, th.Get(ThresholdMinScore, 1), reason), nil
}
