package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/polyguard/internal/application/backtest"
)

// Config es la configuración completa de polyguard.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// BacktestConfig controla los límites del framework de backtesting.
type BacktestConfig struct {
	MaxConcurrent          int          `yaml:"max_concurrent"`
	OnLimit                string       `yaml:"on_limit"` // reject | queue
	FoldParallelism        int          `yaml:"fold_parallelism"`
	CacheTTLMinutes        int          `yaml:"cache_ttl_minutes"`
	CacheMaxEntries        int          `yaml:"cache_max_entries"`
	MaxLeaveOneOutFolds    int          `yaml:"max_leave_one_out_folds"`
	HandleRetentionMinutes int          `yaml:"handle_retention_minutes"`
	Labels                 LabelsConfig `yaml:"labels"`
}

// LabelsConfig ajusta la política de ground truth. Los campos ausentes
// conservan el valor por defecto (todas las señales activas).
type LabelsConfig struct {
	FlaggedWallets        *bool    `yaml:"flagged_wallets"`
	Alerts                *bool    `yaml:"alerts"`
	AlertSameMarket       *bool    `yaml:"alert_same_market"`
	Resolutions           *bool    `yaml:"resolutions"`
	ResolutionMinValueUSD *float64 `yaml:"resolution_min_value_usd"`
	RequireEvidence       *bool    `yaml:"require_evidence"`
}

// APIConfig contiene los base URLs de las APIs de Polymarket.
type APIConfig struct {
	DataBase  string `yaml:"data_base"`
	GammaBase string `yaml:"gamma_base"`
	MaxPages  int    `yaml:"max_pages"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// MetricsConfig controla el endpoint de Prometheus.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // vacío = deshabilitado
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse interpreta un YAML ya leído, aplica el entorno y los defaults y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default devuelve la configuración por defecto (sin archivo). Las
// variables de entorno se aplican y validan igual que en Parse.
func Default() (*Config, error) {
	var cfg Config
	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Default: %w", err)
	}
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba los valores que setDefaults no puede corregir.
func (c *Config) Validate() error {
	var problems []string
	switch backtest.LimitPolicy(c.Backtest.OnLimit) {
	case backtest.LimitReject, backtest.LimitQueue:
	default:
		problems = append(problems, fmt.Sprintf("backtest.on_limit %q must be reject or queue", c.Backtest.OnLimit))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not a known level", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if v := c.Backtest.Labels.ResolutionMinValueUSD; v != nil && *v < 0 {
		problems = append(problems, "backtest.labels.resolution_min_value_usd must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config.Validate: %s", strings.Join(problems, "; "))
	}
	return nil
}

// FrameworkConfig convierte la sección backtest a backtest.Config.
func (c *Config) FrameworkConfig() backtest.Config {
	b := c.Backtest
	return backtest.Config{
		MaxConcurrentBacktests: b.MaxConcurrent,
		OnLimit:                backtest.LimitPolicy(b.OnLimit),
		FoldParallelism:        b.FoldParallelism,
		CacheTTL:               time.Duration(b.CacheTTLMinutes) * time.Minute,
		CacheMaxEntries:        b.CacheMaxEntries,
		MaxLeaveOneOutFolds:    b.MaxLeaveOneOutFolds,
		HandleRetention:        time.Duration(b.HandleRetentionMinutes) * time.Minute,
		Labels:                 b.Labels.policy(),
	}
}

func (l LabelsConfig) policy() backtest.LabelPolicy {
	p := backtest.DefaultLabelPolicy()
	if l.FlaggedWallets != nil {
		p.FlaggedWallets = *l.FlaggedWallets
	}
	if l.Alerts != nil {
		p.Alerts = *l.Alerts
	}
	if l.AlertSameMarket != nil {
		p.AlertSameMarket = *l.AlertSameMarket
	}
	if l.Resolutions != nil {
		p.Resolutions = *l.Resolutions
	}
	if l.ResolutionMinValueUSD != nil {
		p.ResolutionMinValueUSD = *l.ResolutionMinValueUSD
	}
	if l.RequireEvidence != nil {
		p.RequireEvidence = *l.RequireEvidence
	}
	return p
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("POLYGUARD_DB"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("BACKTEST_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BACKTEST_MAX_CONCURRENT: %w", err)
		}
		cfg.Backtest.MaxConcurrent = n
	}
	if v := os.Getenv("BACKTEST_ON_LIMIT"); v != "" {
		cfg.Backtest.OnLimit = strings.ToLower(v)
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	d := backtest.DefaultConfig()
	if cfg.Backtest.MaxConcurrent <= 0 {
		cfg.Backtest.MaxConcurrent = d.MaxConcurrentBacktests
	}
	if cfg.Backtest.OnLimit == "" {
		cfg.Backtest.OnLimit = string(d.OnLimit)
	}
	if cfg.Backtest.FoldParallelism <= 0 {
		cfg.Backtest.FoldParallelism = d.FoldParallelism
	}
	if cfg.Backtest.CacheTTLMinutes <= 0 {
		cfg.Backtest.CacheTTLMinutes = int(d.CacheTTL / time.Minute)
	}
	if cfg.Backtest.CacheMaxEntries <= 0 {
		cfg.Backtest.CacheMaxEntries = d.CacheMaxEntries
	}
	if cfg.Backtest.MaxLeaveOneOutFolds <= 0 {
		cfg.Backtest.MaxLeaveOneOutFolds = d.MaxLeaveOneOutFolds
	}
	if cfg.Backtest.HandleRetentionMinutes <= 0 {
		cfg.Backtest.HandleRetentionMinutes = int(d.HandleRetention / time.Minute)
	}
	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.MaxPages <= 0 {
		cfg.API.MaxPages = 20
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyguard.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
