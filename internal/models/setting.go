package models

// Pricing setting keys.
const (
	SettingBaseDailyRate  = "base_daily_rate"
	SettingInvoiceTTLHrs  = "invoice_ttl_hours"
	SettingPanelUptimeLog = "panel_uptime_log"
)

// PricingSetting maps to the `pricing_settings` table (key-value).
type PricingSetting struct {
	Name  string `gorm:"column:name;primaryKey;size:200" json:"name"`
	Value string `gorm:"column:value;type:text" json:"value"`
}

func (PricingSetting) TableName() string {
	return "pricing_settings"
}
