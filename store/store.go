package store

import (
	"context"
	"errors"
	"time"

	"github.com/deymohit02/crypto-market-tracker/config"
	"github.com/deymohit02/crypto-market-tracker/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the keyed time-series store behind the tracker: latest snapshot
// per coin, an append-only price series, alert rules and watchlists.
// QueryPoints results are ordered by timestamp ascending.
type Store interface {
	// Snapshots
	UpsertSnapshot(ctx context.Context, coin *models.Coin) error
	GetSnapshot(ctx context.Context, coinID string) (*models.Coin, error)
	ListSnapshots(ctx context.Context) ([]models.Coin, error)
	CountSnapshots(ctx context.Context) (int64, error)

	// Price series
	AppendPoint(ctx context.Context, coinID string, price float64, ts time.Time) error
	QueryPoints(ctx context.Context, coinID string, since time.Time) ([]models.PricePoint, error)
	CountPoints(ctx context.Context) (int64, error)
	PrunePoints(ctx context.Context, olderThan time.Time) (int64, error)

	// Alert rules
	CreateRule(ctx context.Context, rule *models.AlertRule) error
	ListActiveRules(ctx context.Context) ([]models.AlertRule, error)
	ListRulesByOwner(ctx context.Context, ownerID string) ([]models.AlertRule, error)
	MarkTriggered(ctx context.Context, ruleID uint, ts time.Time) error
	DeleteRule(ctx context.Context, ruleID uint) error

	// Watchlists
	AddWatch(ctx context.Context, watch *models.Watchlist) error
	ListWatches(ctx context.Context, ownerID string) ([]models.Watchlist, error)
	RemoveWatch(ctx context.Context, watchID uint) error

	Ping(ctx context.Context) error
	Close() error
}

// Open selects the backend from config: Postgres when DATABASE_URL is set,
// otherwise a local SQLite file. Both run their migrations before returning.
func Open(cfg *config.Config) (Store, error) {
	if cfg.DatabaseURL != "" {
		return OpenGorm(cfg.DatabaseURL, cfg.Environment)
	}
	return OpenSQLite(cfg.SQLitePath)
}
