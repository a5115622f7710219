package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/deymohit02/crypto-market-tracker/models"
)

// GormStore is the Postgres-backed store.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to Postgres, verifies the connection and runs
// migrations.
func OpenGorm(dsn, environment string) (*GormStore, error) {
	logLevel := logger.Info
	if environment == "production" {
		logLevel = logger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := models.MigrateMarketModels(db); err != nil {
		return nil, fmt.Errorf("market migrations failed: %w", err)
	}
	if err := models.MigrateAlertModels(db); err != nil {
		return nil, fmt.Errorf("alert migrations failed: %w", err)
	}

	log.Info().Msg("postgres store ready")
	return &GormStore{db: db}, nil
}

func (s *GormStore) UpsertSnapshot(ctx context.Context, coin *models.Coin) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(coin).Error
}

func (s *GormStore) GetSnapshot(ctx context.Context, coinID string) (*models.Coin, error) {
	var coin models.Coin
	err := s.db.WithContext(ctx).First(&coin, "id = ?", coinID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coin, nil
}

func (s *GormStore) ListSnapshots(ctx context.Context) ([]models.Coin, error) {
	var coins []models.Coin
	err := s.db.WithContext(ctx).Order("market_cap_rank ASC").Find(&coins).Error
	return coins, err
}

func (s *GormStore) CountSnapshots(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Coin{}).Count(&count).Error
	return count, err
}

func (s *GormStore) AppendPoint(ctx context.Context, coinID string, price float64, ts time.Time) error {
	point := models.PricePoint{
		CoinID:    coinID,
		Price:     price,
		Timestamp: ts,
	}
	return s.db.WithContext(ctx).Create(&point).Error
}

func (s *GormStore) QueryPoints(ctx context.Context, coinID string, since time.Time) ([]models.PricePoint, error) {
	var points []models.PricePoint
	err := s.db.WithContext(ctx).
		Where("coin_id = ? AND timestamp >= ?", coinID, since).
		Order("timestamp ASC, id ASC").
		Find(&points).Error
	return points, err
}

func (s *GormStore) CountPoints(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.PricePoint{}).Count(&count).Error
	return count, err
}

func (s *GormStore) PrunePoints(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("timestamp < ?", olderThan).
		Delete(&models.PricePoint{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	return s.db.WithContext(ctx).Create(rule).Error
}

func (s *GormStore) ListActiveRules(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := s.db.WithContext(ctx).Where("is_triggered = ?", false).Find(&rules).Error
	return rules, err
}

func (s *GormStore) ListRulesByOwner(ctx context.Context, ownerID string) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rules).Error
	return rules, err
}

func (s *GormStore) MarkTriggered(ctx context.Context, ruleID uint, ts time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.AlertRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"is_triggered": true,
			"triggered_at": ts,
		}).Error
}

func (s *GormStore) DeleteRule(ctx context.Context, ruleID uint) error {
	res := s.db.WithContext(ctx).Delete(&models.AlertRule{}, ruleID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) AddWatch(ctx context.Context, watch *models.Watchlist) error {
	return s.db.WithContext(ctx).Create(watch).Error
}

func (s *GormStore) ListWatches(ctx context.Context, ownerID string) ([]models.Watchlist, error) {
	var watches []models.Watchlist
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&watches).Error
	return watches, err
}

func (s *GormStore) RemoveWatch(ctx context.Context, watchID uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Watchlist{}, watchID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
