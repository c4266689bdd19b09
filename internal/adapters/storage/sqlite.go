package storage

// sqlite.go: histórico local para el backtester.
//
// Una tabla por fuente (trades, markets, wallets, resolutions, alerts).
// Los instantes se guardan como unix ms en INTEGER: las consultas por ventana
// [from, to) son comparaciones de enteros y el índice por tiempo sirve tal
// cual. 0 significa "desconocido". Las escrituras son upserts por clave
// natural, así que reimportar una ventana es idempotente.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/polyguard/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id        TEXT PRIMARY KEY,
    market_id TEXT    NOT NULL,
    asset_id  TEXT    NOT NULL DEFAULT '',
    wallet    TEXT    NOT NULL,
    side      TEXT    NOT NULL,
    outcome   TEXT    NOT NULL DEFAULT '',
    price     REAL    NOT NULL DEFAULT 0,
    size      REAL    NOT NULL DEFAULT 0,
    ts        INTEGER NOT NULL,
    tx_hash   TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS markets (
    condition_id TEXT PRIMARY KEY,
    question     TEXT    NOT NULL DEFAULT '',
    slug         TEXT    NOT NULL DEFAULT '',
    category     TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL DEFAULT 0,
    end_date     INTEGER NOT NULL DEFAULT 0,
    volume       REAL    NOT NULL DEFAULT 0,
    active       INTEGER NOT NULL DEFAULT 0,
    closed       INTEGER NOT NULL DEFAULT 0
);

-- address siempre en minúsculas
CREATE TABLE IF NOT EXISTS wallets (
    address      TEXT PRIMARY KEY,
    first_seen   INTEGER NOT NULL DEFAULT 0,
    trade_count  INTEGER NOT NULL DEFAULT 0,
    total_volume REAL    NOT NULL DEFAULT 0,
    flagged      INTEGER NOT NULL DEFAULT 0,
    label        TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS resolutions (
    market_id       TEXT PRIMARY KEY,
    winning_outcome TEXT    NOT NULL,
    resolved_at     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS alerts (
    id             TEXT PRIMARY KEY,
    wallet_address TEXT    NOT NULL,
    market_id      TEXT    NOT NULL DEFAULT '',
    signal_type    TEXT    NOT NULL DEFAULT '',
    severity       TEXT    NOT NULL DEFAULT '',
    created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_ts      ON trades(ts);
CREATE INDEX IF NOT EXISTS idx_trades_market  ON trades(market_id, ts);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
CREATE INDEX IF NOT EXISTS idx_res_resolved   ON resolutions(resolved_at);
`

// SQLiteStore implementa ports.HistoryStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- lectura ---

// FetchTrades devuelve los trades con timestamp en [from, to), cronológicos.
func (s *SQLiteStore) FetchTrades(ctx context.Context, from, to time.Time) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, asset_id, wallet, side, outcome, price, size, ts, tx_hash
		FROM trades
		WHERE ts >= ? AND ts < ?
		ORDER BY ts, id
	`, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("storage.FetchTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var ts int64
		if err := rows.Scan(&t.ID, &t.MarketID, &t.AssetID, &t.Wallet, &t.Side, &t.Outcome,
			&t.Price, &t.Size, &ts, &t.TxHash); err != nil {
			return nil, fmt.Errorf("storage.FetchTrades: scan row: %w", err)
		}
		t.Timestamp = fromMillis(ts)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// FetchMarkets devuelve los mercados que existían durante [from, to):
// creados antes de to y sin cerrar antes de from. Las fechas desconocidas
// no excluyen.
func (s *SQLiteStore) FetchMarkets(ctx context.Context, from, to time.Time) ([]domain.Market, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id, question, slug, category, created_at, end_date, volume, active, closed
		FROM markets
		WHERE (created_at = 0 OR created_at < ?)
		  AND (end_date = 0 OR end_date >= ?)
		ORDER BY condition_id
	`, toMillis(to), toMillis(from))
	if err != nil {
		return nil, fmt.Errorf("storage.FetchMarkets: query: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		var m domain.Market
		var created, end int64
		var active, closed int
		if err := rows.Scan(&m.ConditionID, &m.Question, &m.Slug, &m.Category,
			&created, &end, &m.Volume, &active, &closed); err != nil {
			return nil, fmt.Errorf("storage.FetchMarkets: scan row: %w", err)
		}
		m.CreatedAt = fromMillis(created)
		m.EndDate = fromMillis(end)
		m.Active = active == 1
		m.Closed = closed == 1
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// FetchWallets devuelve los wallets vistos antes de to.
func (s *SQLiteStore) FetchWallets(ctx context.Context, _, to time.Time) ([]domain.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, first_seen, trade_count, total_volume, flagged, label
		FROM wallets
		WHERE first_seen = 0 OR first_seen < ?
		ORDER BY address
	`, toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("storage.FetchWallets: query: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		var firstSeen int64
		var flagged int
		if err := rows.Scan(&w.Address, &firstSeen, &w.TradeCount, &w.TotalVolume, &flagged, &w.Label); err != nil {
			return nil, fmt.Errorf("storage.FetchWallets: scan row: %w", err)
		}
		w.FirstSeen = fromMillis(firstSeen)
		w.Flagged = flagged == 1
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// FetchResolutions devuelve las resoluciones desde from, incluidas las
// posteriores a to: siguen siendo ground truth de la actividad de la ventana.
func (s *SQLiteStore) FetchResolutions(ctx context.Context, from, _ time.Time) ([]domain.Resolution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, winning_outcome, resolved_at
		FROM resolutions
		WHERE resolved_at = 0 OR resolved_at >= ?
		ORDER BY market_id
	`, toMillis(from))
	if err != nil {
		return nil, fmt.Errorf("storage.FetchResolutions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Resolution
	for rows.Next() {
		var r domain.Resolution
		var resolved int64
		if err := rows.Scan(&r.MarketID, &r.WinningOutcome, &resolved); err != nil {
			return nil, fmt.Errorf("storage.FetchResolutions: scan row: %w", err)
		}
		r.ResolvedAt = fromMillis(resolved)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FetchAlerts devuelve las alertas creadas en [from, to).
func (s *SQLiteStore) FetchAlerts(ctx context.Context, from, to time.Time) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_address, market_id, signal_type, severity, created_at
		FROM alerts
		WHERE created_at >= ? AND created_at < ?
		ORDER BY created_at, id
	`, toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("storage.FetchAlerts: query: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var created int64
		if err := rows.Scan(&a.ID, &a.WalletAddress, &a.MarketID, &a.SignalType, &a.Severity, &created); err != nil {
			return nil, fmt.Errorf("storage.FetchAlerts: scan row: %w", err)
		}
		a.CreatedAt = fromMillis(created)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Counts devuelve el número de filas por fuente.
func (s *SQLiteStore) Counts(ctx context.Context) (map[domain.DataSourceKind]int, error) {
	tables := map[domain.DataSourceKind]string{
		domain.SourceTrades:      "trades",
		domain.SourceMarkets:     "markets",
		domain.SourceWallets:     "wallets",
		domain.SourceResolutions: "resolutions",
		domain.SourceAlerts:      "alerts",
	}
	out := make(map[domain.DataSourceKind]int, len(tables))
	for kind, table := range tables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("storage.Counts: %s: %w", table, err)
		}
		out[kind] = n
	}
	return out, nil
}

// --- escritura ---

// SaveTrades inserta trades; un ID repetido reemplaza la fila.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []domain.Trade) error {
	return s.batch(ctx, "storage.SaveTrades", `
		INSERT INTO trades (id, market_id, asset_id, wallet, side, outcome, price, size, ts, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			market_id = excluded.market_id,
			asset_id  = excluded.asset_id,
			wallet    = excluded.wallet,
			side      = excluded.side,
			outcome   = excluded.outcome,
			price     = excluded.price,
			size      = excluded.size,
			ts        = excluded.ts,
			tx_hash   = excluded.tx_hash
	`, len(trades), func(i int) []any {
		t := trades[i]
		return []any{t.ID, t.MarketID, t.AssetID, t.Wallet, t.Side, t.Outcome,
			t.Price, t.Size, toMillis(t.Timestamp), t.TxHash}
	})
}

// SaveMarkets hace upsert de la metadata de mercados.
func (s *SQLiteStore) SaveMarkets(ctx context.Context, markets []domain.Market) error {
	return s.batch(ctx, "storage.SaveMarkets", `
		INSERT INTO markets (condition_id, question, slug, category, created_at, end_date, volume, active, closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET
			question   = excluded.question,
			slug       = excluded.slug,
			category   = excluded.category,
			created_at = excluded.created_at,
			end_date   = excluded.end_date,
			volume     = excluded.volume,
			active     = excluded.active,
			closed     = excluded.closed
	`, len(markets), func(i int) []any {
		m := markets[i]
		return []any{m.ConditionID, m.Question, m.Slug, m.Category,
			toMillis(m.CreatedAt), toMillis(m.EndDate), m.Volume, boolInt(m.Active), boolInt(m.Closed)}
	})
}

// SaveWallets hace upsert de wallets. flagged nunca se desmarca: una vez
// marcado, un wallet sigue siendo ground truth positivo.
func (s *SQLiteStore) SaveWallets(ctx context.Context, wallets []domain.Wallet) error {
	return s.batch(ctx, "storage.SaveWallets", `
		INSERT INTO wallets (address, first_seen, trade_count, total_volume, flagged, label)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			first_seen   = CASE
			                 WHEN wallets.first_seen = 0 THEN excluded.first_seen
			                 WHEN excluded.first_seen = 0 THEN wallets.first_seen
			                 ELSE MIN(wallets.first_seen, excluded.first_seen)
			               END,
			trade_count  = excluded.trade_count,
			total_volume = excluded.total_volume,
			flagged      = MAX(wallets.flagged, excluded.flagged),
			label        = CASE WHEN excluded.label = '' THEN wallets.label ELSE excluded.label END
	`, len(wallets), func(i int) []any {
		w := wallets[i]
		return []any{strings.ToLower(w.Address), toMillis(w.FirstSeen), w.TradeCount,
			w.TotalVolume, boolInt(w.Flagged), w.Label}
	})
}

// SaveResolutions hace upsert de resoluciones por mercado.
func (s *SQLiteStore) SaveResolutions(ctx context.Context, resolutions []domain.Resolution) error {
	return s.batch(ctx, "storage.SaveResolutions", `
		INSERT INTO resolutions (market_id, winning_outcome, resolved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			winning_outcome = excluded.winning_outcome,
			resolved_at     = excluded.resolved_at
	`, len(resolutions), func(i int) []any {
		r := resolutions[i]
		return []any{r.MarketID, r.WinningOutcome, toMillis(r.ResolvedAt)}
	})
}

// SaveAlerts inserta alertas; un ID repetido se ignora.
func (s *SQLiteStore) SaveAlerts(ctx context.Context, alerts []domain.Alert) error {
	return s.batch(ctx, "storage.SaveAlerts", `
		INSERT INTO alerts (id, wallet_address, market_id, signal_type, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, len(alerts), func(i int) []any {
		a := alerts[i]
		return []any{a.ID, a.WalletAddress, a.MarketID, a.SignalType, a.Severity, toMillis(a.CreatedAt)}
	})
}

// batch ejecuta query una vez por fila dentro de una única transacción.
func (s *SQLiteStore) batch(ctx context.Context, op, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("%s: row %d: %w", op, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// --- helpers internos ---

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
