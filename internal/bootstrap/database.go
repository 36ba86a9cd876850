package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"marzsell/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts baseline rows
// for the settings table.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.PricingTier{},
		&models.Invoice{},
		&models.WalletAccount{},
		&models.SubscriptionNote{},
		&models.PricingSetting{},
	}
}

func seedDefaults(db *gorm.DB) error {
	// base_daily_rate deliberately has no default: pricing must refuse
	// until an admin configures it.
	defaults := map[string]string{
		models.SettingInvoiceTTLHrs: "48",
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for key, value := range defaults {
			var count int64
			if err := tx.Model(&models.PricingSetting{}).Where("name = ?", key).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&models.PricingSetting{Name: key, Value: value}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
