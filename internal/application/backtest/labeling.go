package backtest

import (
	"strings"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// DefaultResolutionMinValueUSD es el nocional mínimo que debe tener la
// posición ganadora para que una resolución marque la unidad como positiva.
const DefaultResolutionMinValueUSD = 1000

// LabelPolicy decide el ground truth de una unidad a partir del dataset.
//
// Una unidad es positiva si se cumple alguna de las señales activas:
//   - el wallet está marcado como sospechoso (FlaggedWallets)
//   - existe una alerta histórica sobre el wallet (Alerts)
//   - el wallet quedó largo en el outcome ganador con al menos
//     ResolutionMinValueUSD de nocional (Resolutions)
//
// Si ninguna señal se cumple la unidad es negativa. Con RequireEvidence,
// una unidad sin ninguna evidencia (ni metadata del wallet ni resolución
// del mercado) queda sin etiquetar y no cuenta en las métricas.
type LabelPolicy struct {
	FlaggedWallets        bool
	Alerts                bool
	AlertSameMarket       bool // la alerta debe ser del mismo mercado (si trae mercado)
	Resolutions           bool
	ResolutionMinValueUSD float64
	RequireEvidence       bool
}

// DefaultLabelPolicy activa todas las señales.
func DefaultLabelPolicy() LabelPolicy {
	return LabelPolicy{
		FlaggedWallets:        true,
		Alerts:                true,
		Resolutions:           true,
		ResolutionMinValueUSD: DefaultResolutionMinValueUSD,
	}
}

// Label devuelve (etiquetada, positiva) para la unidad.
func (p LabelPolicy) Label(ds *domain.HistoricalDataset, unit domain.DataUnit) (bool, bool) {
	evidence := false

	if p.FlaggedWallets && unit.HasWallet {
		evidence = true
		if unit.Wallet.Flagged {
			return true, true
		}
	}

	if p.Alerts {
		for _, a := range ds.AlertsForWallet(unit.WalletAddress) {
			if p.AlertSameMarket && a.MarketID != "" && a.MarketID != unit.MarketID {
				continue
			}
			return true, true
		}
	}

	if p.Resolutions {
		if res, ok := ds.Resolution(unit.MarketID); ok {
			evidence = true
			outcome, value := unit.DominantOutcome()
			if outcome != "" && strings.EqualFold(outcome, res.WinningOutcome) && value >= p.ResolutionMinValueUSD {
				return true, true
			}
		}
	}

	if p.RequireEvidence && !evidence {
		return false, false
	}
	return true, false
}
