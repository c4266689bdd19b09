package backtest

// simulator.go: reproduce la detección sobre la ventana de test de un fold.
//
// La ventana de test se agrupa en unidades (mercado, wallet). Cada unidad se
// pasa al evaluador junto con la línea base del mercado calculada solo con
// las ventanas de train, y la predicción se cruza con el ground truth que
// fija la LabelPolicy. Un evaluador que falla o entra en pánico cuenta como
// predicción negativa con confianza 0: un fallo aislado no tumba el fold.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alejandrodnm/polyguard/internal/domain"
	"github.com/alejandrodnm/polyguard/internal/ports"
)

// FoldSimulation es el resultado bruto de simular un fold.
type FoldSimulation struct {
	Fold              domain.Fold
	Detections        []domain.DetectionResult
	Units             int
	Unlabeled         int
	EvaluatorFailures int
}

// Simulator ejecuta un evaluador sobre los folds de un dataset.
type Simulator struct {
	policy   LabelPolicy
	recorder Recorder
}

// NewSimulator crea un simulador con la política de etiquetado dada.
func NewSimulator(policy LabelPolicy, rec Recorder) *Simulator {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Simulator{policy: policy, recorder: rec}
}

// Run simula un fold. Solo devuelve error si ctx se cancela; en ese caso el
// resultado parcial se descarta.
func (s *Simulator) Run(
	ctx context.Context,
	ds *domain.HistoricalDataset,
	fold domain.Fold,
	strategy domain.StrategyConfig,
	eval ports.StrategyEvaluator,
) (FoldSimulation, error) {
	sim := FoldSimulation{Fold: fold}
	units := BuildUnits(ds, fold)
	sim.Units = len(units)
	sim.Detections = make([]domain.DetectionResult, 0, len(units))
	name := strategy.EvaluatorName()

	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			return FoldSimulation{}, err
		}

		pred, err := safeEvaluate(ctx, eval, unit, strategy.Thresholds)
		det := domain.DetectionResult{
			MarketID:      unit.MarketID,
			WalletAddress: unit.WalletAddress,
			Strategy:      name,
			Timestamp:     unit.FirstTradeAt(),
			Fold:          fold.Index,
		}
		if err != nil {
			sim.EvaluatorFailures++
			s.recorder.EvaluatorFailure(name)
			slog.Debug("evaluator failed",
				"strategy", name,
				"market", unit.MarketID,
				"wallet", unit.WalletAddress,
				"err", err,
			)
			det.EvaluatorError = err.Error()
		} else {
			pred = pred.Normalized()
			det.Predicted = pred.Positive
			det.Confidence = pred.Confidence
			det.SuspicionScore = pred.SuspicionScore
			det.Reason = pred.Reason
		}

		det.Labeled, det.Actual = s.policy.Label(ds, unit)
		if !det.Labeled {
			sim.Unlabeled++
		}
		sim.Detections = append(sim.Detections, det)
	}
	return sim, nil
}

// safeEvaluate convierte un pánico del evaluador en error.
func safeEvaluate(ctx context.Context, eval ports.StrategyEvaluator, unit domain.DataUnit, th domain.Thresholds) (pred domain.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			pred = domain.Prediction{}
			err = fmt.Errorf("evaluator panic: %v", r)
		}
	}()
	return eval.Evaluate(ctx, unit, th)
}

// BuildUnits agrupa los trades de test por (mercado, wallet) y adjunta la
// metadata disponible. El orden es determinista: primer trade, mercado, wallet.
func BuildUnits(ds *domain.HistoricalDataset, fold domain.Fold) []domain.DataUnit {
	trades := ds.TradesIn(fold.Test)
	if len(trades) == 0 {
		return nil
	}
	baselines := computeBaselines(ds, fold.Train)

	type key struct{ market, wallet string }
	idx := make(map[key]int)
	marketWallets := make(map[string]map[string]bool)
	var units []domain.DataUnit

	for _, t := range trades {
		wallet := strings.ToLower(t.Wallet)
		k := key{t.MarketID, wallet}
		i, ok := idx[k]
		if !ok {
			i = len(units)
			idx[k] = i
			units = append(units, domain.DataUnit{
				MarketID:      t.MarketID,
				WalletAddress: wallet,
				Window:        fold.Test,
			})
		}
		units[i].Trades = append(units[i].Trades, t)

		if marketWallets[t.MarketID] == nil {
			marketWallets[t.MarketID] = make(map[string]bool)
		}
		marketWallets[t.MarketID][wallet] = true
	}

	for i := range units {
		u := &units[i]
		u.Market, u.HasMarket = ds.Market(u.MarketID)
		u.Wallet, u.HasWallet = ds.Wallet(u.WalletAddress)
		u.Baseline = baselines[u.MarketID]
		u.MarketWallets = len(marketWallets[u.MarketID])
	}

	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if !a.FirstTradeAt().Equal(b.FirstTradeAt()) {
			return a.FirstTradeAt().Before(b.FirstTradeAt())
		}
		if a.MarketID != b.MarketID {
			return a.MarketID < b.MarketID
		}
		return a.WalletAddress < b.WalletAddress
	})
	return units
}

// computeBaselines resume la actividad por mercado en las ventanas de train.
func computeBaselines(ds *domain.HistoricalDataset, train []domain.Window) map[string]domain.MarketBaseline {
	type acc struct {
		trades   int
		value    float64
		priceSum float64
		wallets  map[string]bool
	}
	accs := make(map[string]*acc)
	for _, w := range train {
		for _, t := range ds.TradesIn(w) {
			a, ok := accs[t.MarketID]
			if !ok {
				a = &acc{wallets: make(map[string]bool)}
				accs[t.MarketID] = a
			}
			a.trades++
			a.value += t.ValueUSD()
			a.priceSum += t.Price
			a.wallets[strings.ToLower(t.Wallet)] = true
		}
	}

	out := make(map[string]domain.MarketBaseline, len(accs))
	for id, a := range accs {
		out[id] = domain.MarketBaseline{
			TradeCount:    a.trades,
			WalletCount:   len(a.wallets),
			TotalValue:    a.value,
			AvgTradeValue: a.value / float64(a.trades),
			AvgPrice:      a.priceSum / float64(a.trades),
		}
	}
	return out
}
