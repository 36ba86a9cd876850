package models

// PricingTier maps to the `pricing_tiers` table.
// Tiers are totally ordered by VolumeLimitGB; each tier prices the volume
// bracket between the previous tier's limit and its own.
type PricingTier struct {
	ID            uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name          string `gorm:"column:name;size:200" json:"name"`
	VolumeLimitGB int    `gorm:"column:volume_limit_gb;uniqueIndex" json:"volume_limit_gb"`
	PricePerGB    int64  `gorm:"column:price_per_gb" json:"price_per_gb"`
}

func (PricingTier) TableName() string {
	return "pricing_tiers"
}
