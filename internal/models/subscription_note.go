package models

import "time"

// SubscriptionNote maps to the `subscription_notes` table.
// One row per panel username: it links the account to the owning Telegram
// user and records the last sold duration/volume/price. Renewal fulfillment
// reads it as the fallback source when an invoice omits those fields.
type SubscriptionNote struct {
	Username     string    `gorm:"column:username;primaryKey;size:200" json:"username"`
	UserID       string    `gorm:"column:user_id;size:64;index" json:"user_id"`
	VolumeGB     int       `gorm:"column:volume_gb" json:"volume_gb"`
	DurationDays int       `gorm:"column:duration_days" json:"duration_days"`
	Price        int64     `gorm:"column:price" json:"price"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (SubscriptionNote) TableName() string {
	return "subscription_notes"
}
