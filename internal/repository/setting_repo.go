package repository

import (
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"marzsell/internal/models"
)

const defaultInvoiceTTL = 48 * time.Hour

// SettingRepository handles the pricing_settings key-value table.
type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns a setting value, or "" when the key is absent.
func (r *SettingRepository) Get(name string) (string, error) {
	var setting models.PricingSetting
	if err := r.db.Where("name = ?", name).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

// Set inserts or updates a setting value.
func (r *SettingRepository) Set(name, value string) error {
	return r.db.Save(&models.PricingSetting{Name: name, Value: value}).Error
}

// GetAll returns all settings.
func (r *SettingRepository) GetAll() ([]models.PricingSetting, error) {
	var settings []models.PricingSetting
	err := r.db.Find(&settings).Error
	return settings, err
}

// BaseDailyRate implements pricing.Source. The second return reports
// whether the rate is configured at all; an empty or malformed value means
// pricing must refuse, never default to zero.
func (r *SettingRepository) BaseDailyRate() (decimal.Decimal, bool, error) {
	raw, err := r.Get(models.SettingBaseDailyRate)
	if err != nil {
		return decimal.Zero, false, err
	}
	if raw == "" {
		return decimal.Zero, false, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		return decimal.Zero, false, nil
	}
	return rate, true, nil
}

// InvoiceTTL returns how long invoices may stay pending before the expiry
// sweep claims them.
func (r *SettingRepository) InvoiceTTL() (time.Duration, error) {
	raw, err := r.Get(models.SettingInvoiceTTLHrs)
	if err != nil {
		return 0, err
	}
	hours, convErr := strconv.Atoi(raw)
	if convErr != nil || hours <= 0 {
		return defaultInvoiceTTL, nil
	}
	return time.Duration(hours) * time.Hour, nil
}
