package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/models"
)

// SQLiteStore is the zero-config local store used when no Postgres DSN is
// configured. A single write lock serializes mutations; reads share an
// RLock.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// runs the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite store ready")
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coinsTable := `
		CREATE TABLE IF NOT EXISTS coins (
			id VARCHAR PRIMARY KEY,
			symbol VARCHAR,
			name VARCHAR,
			current_price VARCHAR,
			market_cap VARCHAR,
			market_cap_rank INTEGER,
			volume_24h VARCHAR,
			change_24h DOUBLE,
			change_7d DOUBLE,
			ath VARCHAR,
			ath_date TIMESTAMP,
			atl VARCHAR,
			atl_date TIMESTAMP,
			last_updated TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP
		)
	`
	if _, err := s.db.Exec(coinsTable); err != nil {
		return fmt.Errorf("failed to create coins table: %w", err)
	}

	pointsTable := `
		CREATE TABLE IF NOT EXISTS price_points (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			coin_id VARCHAR NOT NULL,
			price DOUBLE,
			timestamp TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.Exec(pointsTable); err != nil {
		return fmt.Errorf("failed to create price_points table: %w", err)
	}
	s.db.Exec("CREATE INDEX IF NOT EXISTS idx_points_coin_ts ON price_points(coin_id, timestamp)")

	rulesTable := `
		CREATE TABLE IF NOT EXISTS alert_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id VARCHAR,
			coin_id VARCHAR,
			kind VARCHAR,
			target_value VARCHAR,
			is_triggered BOOLEAN DEFAULT 0,
			triggered_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP
		)
	`
	if _, err := s.db.Exec(rulesTable); err != nil {
		return fmt.Errorf("failed to create alert_rules table: %w", err)
	}
	s.db.Exec("CREATE INDEX IF NOT EXISTS idx_rules_owner ON alert_rules(owner_id)")
	s.db.Exec("CREATE INDEX IF NOT EXISTS idx_rules_triggered ON alert_rules(is_triggered)")

	watchTable := `
		CREATE TABLE IF NOT EXISTS watchlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id VARCHAR NOT NULL,
			coin_id VARCHAR NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP,
			UNIQUE(owner_id, coin_id)
		)
	`
	if _, err := s.db.Exec(watchTable); err != nil {
		return fmt.Errorf("failed to create watchlists table: %w", err)
	}

	return nil
}

func (s *SQLiteStore) UpsertSnapshot(ctx context.Context, coin *models.Coin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR REPLACE INTO coins (
			id, symbol, name, current_price, market_cap, market_cap_rank,
			volume_24h, change_24h, change_7d, ath, ath_date, atl, atl_date,
			last_updated, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		coin.ID, coin.Symbol, coin.Name,
		coin.CurrentPrice, coin.MarketCap, coin.MarketCapRank,
		coin.Volume24h, coin.Change24h, coin.Change7d,
		coin.ATH, nullableTime(coin.ATHDate), coin.ATL, nullableTime(coin.ATLDate),
		coin.LastUpdated.UTC(), time.Now().UTC(),
	)
	return err
}

const coinColumns = `id, symbol, name, current_price, market_cap, market_cap_rank,
	volume_24h, change_24h, change_7d, ath, ath_date, atl, atl_date,
	last_updated, created_at, updated_at`

func (s *SQLiteStore) GetSnapshot(ctx context.Context, coinID string) (*models.Coin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+coinColumns+" FROM coins WHERE id = ?", coinID)

	coin, err := scanCoin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return coin, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]models.Coin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+coinColumns+" FROM coins ORDER BY market_cap_rank ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coins []models.Coin
	for rows.Next() {
		coin, err := scanCoin(rows)
		if err != nil {
			return nil, err
		}
		coins = append(coins, *coin)
	}
	return coins, rows.Err()
}

func (s *SQLiteStore) CountSnapshots(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM coins").Scan(&count)
	return count, err
}

func (s *SQLiteStore) AppendPoint(ctx context.Context, coinID string, price float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO price_points (coin_id, price, timestamp) VALUES (?, ?, ?)",
		coinID, price, ts.UTC())
	return err
}

func (s *SQLiteStore) QueryPoints(ctx context.Context, coinID string, since time.Time) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, coin_id, price, timestamp FROM price_points
		 WHERE coin_id = ? AND timestamp >= ? ORDER BY timestamp ASC, id ASC`,
		coinID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var p models.PricePoint
		if err := rows.Scan(&p.ID, &p.CoinID, &p.Price, &p.Timestamp); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) CountPoints(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM price_points").Scan(&count)
	return count, err
}

func (s *SQLiteStore) PrunePoints(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM price_points WHERE timestamp < ?", olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_rules (owner_id, coin_id, kind, target_value, is_triggered, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		rule.OwnerID, rule.CoinID, rule.Kind, rule.TargetValue, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rule.ID = uint(id)
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

const ruleColumns = `id, owner_id, coin_id, kind, target_value, is_triggered, triggered_at, created_at, updated_at`

func (s *SQLiteStore) ListActiveRules(ctx context.Context) ([]models.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM alert_rules WHERE is_triggered = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *SQLiteStore) ListRulesByOwner(ctx context.Context, ownerID string) ([]models.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM alert_rules WHERE owner_id = ? ORDER BY created_at DESC", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *SQLiteStore) MarkTriggered(ctx context.Context, ruleID uint, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE alert_rules SET is_triggered = 1, triggered_at = ?, updated_at = ? WHERE id = ?",
		ts.UTC(), time.Now().UTC(), ruleID)
	return err
}

func (s *SQLiteStore) DeleteRule(ctx context.Context, ruleID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM alert_rules WHERE id = ?", ruleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) AddWatch(ctx context.Context, watch *models.Watchlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO watchlists (owner_id, coin_id, created_at, updated_at) VALUES (?, ?, ?, ?)",
		watch.OwnerID, watch.CoinID, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	watch.ID = uint(id)
	watch.CreatedAt = now
	watch.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) ListWatches(ctx context.Context, ownerID string) ([]models.Watchlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, coin_id, created_at, updated_at FROM watchlists
		 WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watches []models.Watchlist
	for rows.Next() {
		var w models.Watchlist
		var createdAt, updatedAt sql.NullTime
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.CoinID, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			w.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			w.UpdatedAt = updatedAt.Time
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

func (s *SQLiteStore) RemoveWatch(ctx context.Context, watchID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM watchlists WHERE id = ?", watchID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoin(row rowScanner) (*models.Coin, error) {
	var coin models.Coin
	var athDate, atlDate, lastUpdated, createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&coin.ID, &coin.Symbol, &coin.Name,
		&coin.CurrentPrice, &coin.MarketCap, &coin.MarketCapRank,
		&coin.Volume24h, &coin.Change24h, &coin.Change7d,
		&coin.ATH, &athDate, &coin.ATL, &atlDate,
		&lastUpdated, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if athDate.Valid {
		coin.ATHDate = &athDate.Time
	}
	if atlDate.Valid {
		coin.ATLDate = &atlDate.Time
	}
	if lastUpdated.Valid {
		coin.LastUpdated = lastUpdated.Time
	}
	if createdAt.Valid {
		coin.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		coin.UpdatedAt = updatedAt.Time
	}
	return &coin, nil
}

func scanRules(rows *sql.Rows) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	for rows.Next() {
		var r models.AlertRule
		var triggeredAt, createdAt, updatedAt sql.NullTime

		err := rows.Scan(&r.ID, &r.OwnerID, &r.CoinID, &r.Kind, &r.TargetValue,
			&r.IsTriggered, &triggeredAt, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}

		if triggeredAt.Valid {
			r.TriggeredAt = &triggeredAt.Time
		}
		if createdAt.Valid {
			r.CreatedAt = createdAt.Time
		}
		if updatedAt.Valid {
			r.UpdatedAt = updatedAt.Time
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
