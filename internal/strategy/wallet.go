package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// Umbrales de FRESH_WALLET_DETECTION.
const (
	ThresholdMaxAgeDays     = "max_age_days"
	ThresholdMaxPriorTrades = "max_prior_trades"
)

// FreshWallet marca wallets nuevos que entran con tamaño relevante.
type FreshWallet struct{}

// NewFreshWallet crea el evaluador de wallets frescos.
func NewFreshWallet() *FreshWallet { return &FreshWallet{} }

// Evaluate implementa ports.StrategyEvaluator. Sin metadata del wallet la
// unidad se considera negativa con confianza 0.
func (f *FreshWallet) Evaluate(_ context.Context, unit domain.DataUnit, th domain.Thresholds) (domain.Prediction, error) {
	if !unit.HasWallet || len(unit.Trades) == 0 {
		return domain.Prediction{Reason: "no wallet metadata"}, nil
	}
	return predict(freshnessScore(unit, th), th.Get(ThresholdMinScore, 0.6), freshnessReason(unit)), nil
}

// freshnessScore combina antigüedad, historial previo y tamaño.
func freshnessScore(unit domain.DataUnit, th domain.Thresholds) float64 {
	maxAge := time.Duration(th.Get(ThresholdMaxAgeDays, 7) * float64(24*time.Hour))
	maxPrior := th.Get(ThresholdMaxPriorTrades, 5)
	minTotal := th.Get(ThresholdMinTotalUSD, 1_000)

	age := unit.Wallet.AgeAt(unit.FirstTradeAt())
	ageScore := 0.0
	if maxAge > 0 && age < maxAge {
		ageScore = 1 - float64(age)/float64(maxAge)
	}

	historyScore := 0.0
	if prior := float64(unit.Wallet.TradeCount); maxPrior > 0 && prior <= maxPrior {
		historyScore = 1 - prior/(maxPrior+1)
	}

	sizeScore := ratio(unit.TotalValueUSD(), minTotal)
	return 0.4*ageScore + 0.2*historyScore + 0.4*sizeScore
}

func freshnessReason(unit domain.DataUnit) string {
	age := unit.Wallet.AgeAt(unit.FirstTradeAt())
	return fmt.Sprintf("wallet age %.1fd, %d prior trades, total $%.0f",
		age.Hours()/24, unit.Wallet.TradeCount, unit.TotalValueUSD())
}
