package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polyguard/internal/domain"
)

// maxDetectionRows limita las detecciones impresas en DETAILED/DEBUG.
const maxDetectionRows = 25

// Console implementa ports.ReportNotifier imprimiendo tablas en texto.
type Console struct {
	out      io.Writer
	maxRows  int
	showTime bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, maxRows: maxDetectionRows, showTime: true}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, maxRows: maxDetectionRows}
}

// NotifyReport imprime el reporte. Lo que se muestra depende de lo que el
// reporte trae: el nivel de detalle ya se aplicó al ensamblarlo.
func (c *Console) NotifyReport(_ context.Context, r *domain.BacktestReport) error {
	if r == nil {
		return errors.New("notify.NotifyReport: nil report")
	}

	c.printHeader(r)
	c.printMetrics(r)
	if len(r.FoldResults) > 0 {
		c.printFolds(r.FoldResults)
	}
	if len(r.Insights) > 0 {
		fmt.Fprintf(c.out, "\n  --- INSIGHTS ---\n")
		for _, in := range r.Insights {
			fmt.Fprintf(c.out, "  - %s\n", in)
		}
	}
	if len(r.Detections) > 0 {
		c.printDetections(r.Detections)
	}
	if r.Diagnostics != nil {
		c.printDiagnostics(r.Diagnostics)
	}
	fmt.Fprintln(c.out)
	return nil
}

// printHeader imprime la identificación del run y la procedencia de los datos.
func (c *Console) printHeader(r *domain.BacktestReport) {
	name := r.Name
	if name == "" {
		name = r.BacktestID
	}
	fmt.Fprintf(c.out, "\n========================================================\n")
	fmt.Fprintf(c.out, "  BACKTEST %s %s\n", r.Tier.Icon(), name)
	if c.showTime {
		fmt.Fprintf(c.out, "  completed %s in %s\n",
			r.CompletedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(c.out, "========================================================\n")

	cfg := r.Config
	fmt.Fprintf(c.out, "  Strategy:   %s\n", strategyLabel(cfg.Strategy))
	fmt.Fprintf(c.out, "  Window:     %s → %s (%d days)\n",
		r.Dataset.Start.Format("2006-01-02 15:04"), r.Dataset.End.Format("2006-01-02 15:04"),
		domain.Window{Start: r.Dataset.Start, End: r.Dataset.End}.DayUnits())
	fmt.Fprintf(c.out, "  Validation: %s (%d folds)\n", cfg.Method, len(r.Folds))
	fmt.Fprintf(c.out, "  Dataset:    quality %.1f/100, %s\n", r.Dataset.QualityScore, rowsLabel(r.Dataset))
	if len(r.Dataset.Failed) > 0 {
		fmt.Fprintf(c.out, "  !! degraded sources: %s\n", domain.SourcesKey(r.Dataset.Failed))
	}
}

// printMetrics imprime las métricas agregadas y la matriz de confusión.
func (c *Console) printMetrics(r *domain.BacktestReport) {
	m := r.Metrics
	fmt.Fprintln(c.out)

	table := tablewriter.NewWriter(c.out)
	table.Header("Accuracy", "Precision", "Recall", "F1", "MCC", "AUC-ROC", "Tier", "Score")
	table.Append(
		fmt.Sprintf("%.3f", m.Accuracy),
		fmt.Sprintf("%.3f", m.Precision),
		fmt.Sprintf("%.3f", m.Recall),
		fmt.Sprintf("%.3f", m.F1),
		fmt.Sprintf("%+.3f", m.MCC),
		fmt.Sprintf("%.3f", m.AUCROC),
		string(r.Tier),
		fmt.Sprintf("%.1f", r.Score),
	)
	table.Render()

	fmt.Fprintf(c.out, "  TP=%d FP=%d TN=%d FN=%d (%d labeled detections)\n",
		m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives, m.TotalDetections)
}

// printFolds imprime una fila por fold.
func (c *Console) printFolds(folds []domain.FoldResult) {
	fmt.Fprintf(c.out, "\n  --- FOLDS ---\n")
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Test window", "Units", "TP/FP/TN/FN", "Precision", "Recall", "F1", "Fail")

	for _, f := range folds {
		m := f.Metrics
		table.Append(
			fmt.Sprintf("%d", f.Fold.Index+1),
			fmt.Sprintf("%s → %s", f.Fold.Test.Start.Format("01-02 15:04"), f.Fold.Test.End.Format("01-02 15:04")),
			fmt.Sprintf("%d", f.Units),
			fmt.Sprintf("%d/%d/%d/%d", m.TruePositives, m.FalsePositives, m.TrueNegatives, m.FalseNegatives),
			fmt.Sprintf("%.3f", m.Precision),
			fmt.Sprintf("%.3f", m.Recall),
			fmt.Sprintf("%.3f", m.F1),
			fmt.Sprintf("%d", f.EvaluatorFailures),
		)
	}
	table.Render()
}

// printDetections imprime las detecciones positivas primero, por confianza.
func (c *Console) printDetections(dets []domain.DetectionResult) {
	sorted := make([]domain.DetectionResult, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Predicted != sorted[j].Predicted {
			return sorted[i].Predicted
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	shown := sorted
	if len(shown) > c.maxRows {
		shown = shown[:c.maxRows]
	}

	fmt.Fprintf(c.out, "\n  --- DETECTIONS (%d of %d) ---\n", len(shown), len(dets))
	table := tablewriter.NewWriter(c.out)
	table.Header("Fold", "Market", "Wallet", "Pred", "Actual", "Conf", "Score", "Reason")
	for _, d := range shown {
		table.Append(
			fmt.Sprintf("%d", d.Fold+1),
			shortID(d.MarketID),
			shortID(d.WalletAddress),
			yesNo(d.Predicted),
			actualLabel(d),
			fmt.Sprintf("%.2f", d.Confidence),
			fmt.Sprintf("%.0f", d.SuspicionScore),
			truncate(reasonLabel(d), 40),
		)
	}
	table.Render()
}

// printDiagnostics imprime los contadores internos (solo DEBUG).
func (c *Console) printDiagnostics(d *domain.Diagnostics) {
	fmt.Fprintf(c.out, "\n  --- DIAGNOSTICS ---\n")
	fmt.Fprintf(c.out, "  cache hit=%t hits=%d misses=%d evictions=%d entries=%d\n",
		d.CacheHit, d.CacheHits, d.CacheMisses, d.CacheEvictions, d.CacheEntries)
	fmt.Fprintf(c.out, "  folds requested=%d produced=%d\n", d.FoldsRequested, d.FoldsProduced)
	fmt.Fprintf(c.out, "  evaluator failures=%d unlabeled units=%d\n", d.EvaluatorFailures, d.UnlabeledUnits)
	if len(d.FailedSources) > 0 {
		fmt.Fprintf(c.out, "  failed sources: %s\n", domain.SourcesKey(d.FailedSources))
	}
}

// --- helpers ---

func strategyLabel(s domain.StrategyConfig) string {
	label := string(s.Type)
	if s.Type == domain.StrategyCustom {
		label += "/" + s.CustomName
	}
	if len(s.Thresholds) == 0 {
		return label
	}
	keys := make([]string, 0, len(s.Thresholds))
	for k := range s.Thresholds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, s.Thresholds[k])
	}
	return label + " [" + strings.Join(parts, " ") + "]"
}

func rowsLabel(info domain.DatasetInfo) string {
	parts := make([]string, 0, len(info.Sources))
	for _, k := range info.Sources {
		parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(string(k)), info.Rows[k]))
	}
	return strings.Join(parts, " ")
}

func actualLabel(d domain.DetectionResult) string {
	if !d.Labeled {
		return "?"
	}
	return yesNo(d.Actual)
}

func reasonLabel(d domain.DetectionResult) string {
	if d.EvaluatorError != "" {
		return "error: " + d.EvaluatorError
	}
	return d.Reason
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shortID(s string) string {
	if len(s) > 14 {
		return s[:8] + "…" + s[len(s)-4:]
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
