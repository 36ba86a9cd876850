package repository

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"marzsell/internal/billing"
	"marzsell/internal/models"
)

// WalletRepository is the only writer of wallet balances. Decrease is a
// single conditional UPDATE (balance >= amount) so two concurrent spends
// against the same balance can never both succeed.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetBalance returns the user's balance. Unknown users read as zero; the
// account row is created lazily on the first mutation.
func (r *WalletRepository) GetBalance(userID string) (decimal.Decimal, error) {
	var account models.WalletAccount
	if err := r.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Increase atomically adds amount to the user's balance and returns the new
// balance. Rejects non-positive amounts.
func (r *WalletRepository) Increase(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, billing.ErrNonPositiveAmount
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureAccount(tx, userID); err != nil {
			return err
		}
		return tx.Model(&models.WalletAccount{}).Where("user_id = ?", userID).
			Update("balance", gorm.Expr("balance + ?", amount)).Error
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet increase: %w", err)
	}
	return r.GetBalance(userID)
}

// Decrease atomically subtracts amount if the balance covers it; otherwise
// it returns ErrInsufficientFunds and the balance is unchanged. The check
// and the write are one statement, never a read followed by a write.
func (r *WalletRepository) Decrease(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, billing.ErrNonPositiveAmount
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureAccount(tx, userID); err != nil {
			return err
		}
		res := tx.Model(&models.WalletAccount{}).
			Where("user_id = ? AND balance >= ?", userID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return billing.ErrInsufficientFunds
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, billing.ErrInsufficientFunds) {
			return decimal.Zero, billing.ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("wallet decrease: %w", err)
	}
	return r.GetBalance(userID)
}

// ensureAccount creates the implicit zero-balance row if missing.
func ensureAccount(tx *gorm.DB, userID string) error {
	return tx.Where("user_id = ?", userID).
		FirstOrCreate(&models.WalletAccount{UserID: userID, Balance: decimal.Zero}).Error
}
