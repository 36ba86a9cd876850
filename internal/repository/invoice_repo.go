package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"marzsell/internal/models"
)

// InvoiceRepository handles invoice database operations. Status transitions
// are conditional updates on status = 'pending' so concurrent approvals of
// the same invoice cannot both win.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create persists a new invoice.
func (r *InvoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

// FindByID returns an invoice by its invoice ID, or nil when absent.
func (r *InvoiceRepository) FindByID(invoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.Where("invoice_id = ?", invoiceID).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// FindAll returns invoices with pagination and search.
func (r *InvoiceRepository) FindAll(limit, page int, query string) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	var total int64

	db := r.db.Model(&models.Invoice{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("invoice_id LIKE ? OR user_id LIKE ? OR status LIKE ?",
			search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// FindByUserID returns all invoices for a user, newest first.
func (r *InvoiceRepository) FindByUserID(userID string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

// MarkApproved transitions pending → approved. Returns false when the
// invoice was not pending (or does not exist); nothing is written then.
func (r *InvoiceRepository) MarkApproved(invoiceID, approver string) (bool, error) {
	res := r.db.Model(&models.Invoice{}).
		Where("invoice_id = ? AND status = ?", invoiceID, models.InvoiceStatusPending).
		Updates(map[string]interface{}{
			"status":      models.InvoiceStatusApproved,
			"approved_by": approver,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkRejected transitions pending → rejected with the same guard.
func (r *InvoiceRepository) MarkRejected(invoiceID, approver string) (bool, error) {
	res := r.db.Model(&models.Invoice{}).
		Where("invoice_id = ? AND status = ?", invoiceID, models.InvoiceStatusPending).
		Updates(map[string]interface{}{
			"status":      models.InvoiceStatusRejected,
			"approved_by": approver,
		})
	return res.RowsAffected > 0, res.Error
}

// ExpirePendingBefore bulk-transitions stale pending invoices to expired
// and returns the number of rows touched. Idempotent: non-pending rows are
// untouched.
func (r *InvoiceRepository) ExpirePendingBefore(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.Invoice{}).
		Where("status = ? AND created_at < ?", models.InvoiceStatusPending, cutoff).
		Update("status", models.InvoiceStatusExpired)
	return res.RowsAffected, res.Error
}

// CountByStatus counts invoices in a given status.
func (r *InvoiceRepository) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
