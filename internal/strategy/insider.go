package strategy

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Umbrales de INSIDER_DETECTION.
const (
	ThresholdMaxHoursToResolution = "max_hours_to_resolution"
)

// Insider combina tamaño, frescura del wallet y cercanía a la resolución:
// un wallet nuevo que entra fuerte poco antes de que el mercado se resuelva.
type Insider struct{}

// NewInsider crea el evaluador de insiders.
func NewInsider() *Insider { return &Insider{} }

// Evaluate implementa ports.StrategyEvaluator.
func (i *Insider) Evaluate(_ context.Context, unit domain.DataUnit, th domain.Thresholds) (domain.Prediction, error) {
	if len(unit.Trades) == 0 {
		return domain.Prediction{Reason: "no trades"}, nil
	}

	minTotal := th.Get(ThresholdMinTotalUSD, 5_000)
	maxHours := th.Get(ThresholdMaxHoursToResolution, 72)

	_, position := unit.DominantOutcome()
	sizeScore := ratio(position, minTotal)

	freshScore := 0.0
	if unit.HasWallet {
		freshScore = freshnessScore(unit, domain.Thresholds{
			ThresholdMaxAgeDays:     th.Get(ThresholdMaxAgeDays, 14),
			ThresholdMaxPriorTrades: th.Get(ThresholdMaxPriorTrades, 10),
			ThresholdMinTotalUSD:    minTotal,
		})
	}

	timingScore := 0.0
	hours := -1.0
	if unit.HasMarket && !unit.Market.EndDate.IsZero() && maxHours > 0 {
		hours = unit.Market.HoursToResolutionAt(unit.FirstTradeAt())
		if hours < maxHours {
			timingScore = 1 - hours/maxHours
		}
	}

	score := 0.4*sizeScore + 0.3*freshScore + 0.3*timingScore
	reason := fmt.Sprintf("position $%.0f, fresh %.2f, %.0fh to resolution", position, freshScore, hours)
	return predict(score, th.Get(ThresholdMinScore, 0.6), reason), nil
}
