package repository

import (
	"gorm.io/gorm"

	"marzsell/internal/models"
)

// TierRepository handles pricing tier database operations.
type TierRepository struct {
	db *gorm.DB
}

func NewTierRepository(db *gorm.DB) *TierRepository {
	return &TierRepository{db: db}
}

// FindAll returns all tiers ordered by volume limit ascending, the order
// the pricing walk consumes them in.
func (r *TierRepository) FindAll() ([]models.PricingTier, error) {
	var tiers []models.PricingTier
	err := r.db.Order("volume_limit_gb ASC").Find(&tiers).Error
	return tiers, err
}

// FindByID returns a tier by its ID.
func (r *TierRepository) FindByID(id uint) (*models.PricingTier, error) {
	var tier models.PricingTier
	if err := r.db.Where("id = ?", id).First(&tier).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

// Create inserts a new tier. The unique index on volume_limit_gb rejects
// duplicate limits.
func (r *TierRepository) Create(tier *models.PricingTier) error {
	return r.db.Create(tier).Error
}

// Update updates tier fields.
func (r *TierRepository) Update(id uint, updates map[string]interface{}) error {
	return r.db.Model(&models.PricingTier{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes a tier.
func (r *TierRepository) Delete(id uint) error {
	return r.db.Where("id = ?", id).Delete(&models.PricingTier{}).Error
}

// ListTiers implements pricing.Source.
func (r *TierRepository) ListTiers() ([]models.PricingTier, error) {
	return r.FindAll()
}
