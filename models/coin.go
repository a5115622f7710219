package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coin represents the latest market snapshot for a tracked asset.
// Ingestion replaces the row wholesale; history lives in PricePoint.
type Coin struct {
	ID            string          `gorm:"primaryKey" json:"id"` // provider slug, e.g. "bitcoin"
	Symbol        string          `gorm:"index" json:"symbol"`
	Name          string          `json:"name"`
	CurrentPrice  decimal.Decimal `gorm:"type:decimal(24,8)" json:"current_price"`
	MarketCap     decimal.Decimal `gorm:"type:decimal(30,2)" json:"market_cap"`
	MarketCapRank int             `gorm:"index" json:"market_cap_rank"`
	Volume24h     decimal.Decimal `gorm:"type:decimal(30,2)" json:"total_volume"`
	Change24h     float64         `json:"price_change_percentage_24h"`
	Change7d      float64         `json:"price_change_percentage_7d"`
	ATH           decimal.Decimal `gorm:"type:decimal(24,8)" json:"ath"`
	ATHDate       *time.Time      `json:"ath_date"`
	ATL           decimal.Decimal `gorm:"type:decimal(24,8)" json:"atl"`
	ATLDate       *time.Time      `json:"atl_date"`
	LastUpdated   time.Time       `json:"last_updated"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PricePoint is a single sample in a coin's rolling price series.
// Timestamps are non-decreasing in query order; duplicates are allowed.
type PricePoint struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CoinID    string    `gorm:"index:idx_coin_ts" json:"coin_id"`
	Price     float64   `json:"price"`
	Timestamp time.Time `gorm:"index:idx_coin_ts" json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// SeriesPoint is one element of a reconciled history series returned to
// clients. It is a transport shape only and is never persisted.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// MigrateMarketModels runs database migrations for market data models
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Coin{},
		&PricePoint{},
	)
}
