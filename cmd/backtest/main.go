package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polyguard/config"
	"github.com/alejandrodnm/polyguard/internal/adapters/notify"
	"github.com/alejandrodnm/polyguard/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyguard/internal/adapters/storage"
	"github.com/alejandrodnm/polyguard/internal/application/backtest"
	"github.com/alejandrodnm/polyguard/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")

	name := flag.String("name", "", "backtest name shown in the report")
	strategyType := flag.String("strategy", "WHALE_DETECTION", "strategy type to evaluate")
	thresholds := flag.String("thresholds", "", "strategy thresholds as key=value,key=value")
	from := flag.String("from", "", "window start (RFC3339 or YYYY-MM-DD); default: -days before -to")
	to := flag.String("to", "", "window end (RFC3339 or YYYY-MM-DD); default: now")
	days := flag.Int("days", 30, "window length in days when -from is empty")
	method := flag.String("method", "NONE", "validation: NONE|TRAIN_TEST_SPLIT|K_FOLD_CV|WALK_FORWARD|LEAVE_ONE_OUT")
	split := flag.Float64("split", 0, "train/test ratio for TRAIN_TEST_SPLIT (default 0.8)")
	folds := flag.Int("folds", 0, "fold count for K_FOLD_CV (default 5)")
	wfDays := flag.Int("wf-days", 0, "walk-forward window in days (default 7)")
	detail := flag.String("detail", "STANDARD", "report detail: SUMMARY|STANDARD|DETAILED|DEBUG")
	sources := flag.String("sources", "", "comma separated data sources (default: all the provider serves)")
	source := flag.String("source", "sqlite", "data provider: sqlite|polymarket")
	noCache := flag.Bool("no-cache", false, "bypass the dataset cache")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address (overrides config)")
	importPM := flag.Bool("import-polymarket", false, "copy the window from Polymarket into SQLite and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to load config", "err", err, "path", *configPath)
			os.Exit(1)
		}
		cfg, err = config.Default()
		if err != nil {
			slog.Error("invalid default config", "err", err)
			os.Exit(1)
		}
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	setupLogger(cfg.Log)

	window, err := parseWindow(*from, *to, *days, time.Now().UTC())
	if err != nil {
		slog.Error("invalid window", "err", err)
		os.Exit(2)
	}

	slog.Info("polyguard starting",
		"config", *configPath,
		"source", *source,
		"from", window.Start,
		"to", window.End,
		"import", *importPM,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := polymarket.NewClient(cfg.API.DataBase, cfg.API.GammaBase, polymarket.WithMaxPages(cfg.API.MaxPages))

	if *importPM {
		store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
		if err := importPolymarket(ctx, client, store, window); err != nil {
			slog.Error("import failed", "err", err)
			os.Exit(1)
		}
		return
	}

	collector := metrics.New(nil)
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, collector)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var src backtest.Sources
	switch *source {
	case "sqlite":
		store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
		src = backtest.SourcesFromStore(store)
	case "polymarket":
		src = backtest.Sources{Trades: client, Markets: client, Resolutions: client}
		if *sources == "" {
			*sources = "TRADES,MARKETS,RESOLUTIONS"
		}
	default:
		slog.Error("unknown source", "source", *source)
		os.Exit(2)
	}

	th, err := parseThresholds(*thresholds)
	if err != nil {
		slog.Error("invalid thresholds", "err", err)
		os.Exit(2)
	}
	kinds, err := parseSources(*sources)
	if err != nil {
		slog.Error("invalid sources", "err", err)
		os.Exit(2)
	}

	fw, err := backtest.New(cfg.FrameworkConfig(), backtest.Dependencies{
		Sources:  src,
		Recorder: collector,
		Notifier: notify.NewConsole(),
	}, backtest.WithEventHandler(logEvent))
	if err != nil {
		slog.Error("failed to build framework", "err", err)
		os.Exit(1)
	}

	req := buildRequest(requestFlags{
		name:       *name,
		strategy:   *strategyType,
		thresholds: th,
		window:     window,
		method:     *method,
		split:      *split,
		folds:      *folds,
		wfDays:     *wfDays,
		detail:     *detail,
		sources:    kinds,
		noCache:    *noCache,
	})

	if err := runBacktest(ctx, fw, req); err != nil {
		os.Exit(1)
	}
	slog.Info("polyguard stopped cleanly")
}

// serveMetrics expone /metrics en segundo plano.
func serveMetrics(addr string, c *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "err", err, "addr", addr)
		}
	}()
	slog.Info("metrics server listening", "addr", addr)
	return srv
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
