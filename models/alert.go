package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertRule represents a one-shot price alert. Once IsTriggered flips to
// true it stays true: a fired rule is never re-armed automatically, the
// owner has to create a new one.
type AlertRule struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OwnerID     string          `gorm:"index" json:"owner_id"`
	CoinID      string          `gorm:"index" json:"coin_id"`
	Kind        string          `json:"kind"` // price_above, price_below, percentage_change
	TargetValue decimal.Decimal `gorm:"type:decimal(24,8)" json:"target_value"`
	IsTriggered bool            `gorm:"default:false" json:"is_triggered"`
	TriggeredAt *time.Time      `json:"triggered_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Watchlist represents a coin pinned by an owner
type Watchlist struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   string    `gorm:"uniqueIndex:idx_owner_coin" json:"owner_id"`
	CoinID    string    `gorm:"uniqueIndex:idx_owner_coin" json:"coin_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alert kind constants
const (
	AlertKindPriceAbove       = "price_above"
	AlertKindPriceBelow       = "price_below"
	AlertKindPercentageChange = "percentage_change"
)

// ValidAlertKinds returns the alert kinds accepted by the API
func ValidAlertKinds() []string {
	return []string{
		AlertKindPriceAbove,
		AlertKindPriceBelow,
		AlertKindPercentageChange,
	}
}

// IsValidAlertKind checks if the alert kind is valid
func IsValidAlertKind(kind string) bool {
	for _, valid := range ValidAlertKinds() {
		if kind == valid {
			return true
		}
	}
	return false
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&AlertRule{},
		&Watchlist{},
	)
}
