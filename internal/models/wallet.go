package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletAccount maps to the `wallet_accounts` table.
// Accounts are created implicitly with a zero balance on first reference
// and never deleted. Balance must stay non-negative; the repository is the
// only writer.
type WalletAccount struct {
	UserID    string          `gorm:"column:user_id;primaryKey;size:64" json:"user_id"`
	Balance   decimal.Decimal `gorm:"column:balance;type:decimal(20,2);default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (WalletAccount) TableName() string {
	return "wallet_accounts"
}
