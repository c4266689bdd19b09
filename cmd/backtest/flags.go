package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// requestFlags son los flags que describen un backtest.
type requestFlags struct {
	name       string
	strategy   string
	thresholds domain.Thresholds
	window     domain.Window
	method     string
	split      float64
	folds      int
	wfDays     int
	detail     string
	sources    []domain.DataSourceKind
	noCache    bool
}

// buildRequest arma la BacktestConfig. La validación la hace el framework.
func buildRequest(f requestFlags) domain.BacktestConfig {
	st := domain.StrategyType(strings.ToUpper(f.strategy))
	sc := domain.StrategyConfig{Type: st, Thresholds: f.thresholds}
	if !st.Valid() {
		// Un nombre desconocido se trata como evaluador CUSTOM registrado.
		sc = domain.StrategyConfig{Type: domain.StrategyCustom, CustomName: f.strategy, Thresholds: f.thresholds}
	}
	return domain.BacktestConfig{
		Name:                  f.name,
		Strategy:              sc,
		Sources:               f.sources,
		Start:                 f.window.Start,
		End:                   f.window.End,
		Method:                domain.ValidationMethod(strings.ToUpper(f.method)),
		TrainTestSplit:        f.split,
		KFolds:                f.folds,
		WalkForwardWindowDays: f.wfDays,
		Detail:                domain.ReportDetail(strings.ToUpper(f.detail)),
		BypassCache:           f.noCache,
	}
}

// parseWindow resuelve -from/-to/-days. Sin -to la ventana termina en now.
func parseWindow(from, to string, days int, now time.Time) (domain.Window, error) {
	end := now
	if to != "" {
		t, err := parseTime(to)
		if err != nil {
			return domain.Window{}, fmt.Errorf("-to: %w", err)
		}
		end = t
	}
	var start time.Time
	if from != "" {
		t, err := parseTime(from)
		if err != nil {
			return domain.Window{}, fmt.Errorf("-from: %w", err)
		}
		start = t
	} else {
		if days <= 0 {
			return domain.Window{}, fmt.Errorf("-days %d must be positive", days)
		}
		start = end.Add(-time.Duration(days) * 24 * time.Hour)
	}
	if !start.Before(end) {
		return domain.Window{}, fmt.Errorf("start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return domain.Window{Start: start, End: end}, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (use RFC3339 or YYYY-MM-DD)", s)
}

// parseThresholds lee "k=v,k=v".
func parseThresholds(s string) (domain.Thresholds, error) {
	th := domain.Thresholds{}
	if strings.TrimSpace(s) == "" {
		return th, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("threshold %q must be key=value", pair)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", k, err)
		}
		th[k] = f
	}
	return th, nil
}

// parseSources lee "TRADES,WALLETS". Vacío = todas.
func parseSources(s string) ([]domain.DataSourceKind, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var kinds []domain.DataSourceKind
	for _, part := range strings.Split(s, ",") {
		k := domain.DataSourceKind(strings.ToUpper(strings.TrimSpace(part)))
		if !k.Valid() {
			return nil, fmt.Errorf("unknown data source %q", part)
		}
		kinds = append(kinds, k)
	}
	return domain.NormalizeSources(kinds), nil
}
