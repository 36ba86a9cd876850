package models

import "time"

// Invoice status lifecycle. An invoice is created pending and moves to
// exactly one terminal state; terminal rows are never edited or deleted.
const (
	InvoiceStatusPending  = "pending"
	InvoiceStatusApproved = "approved"
	InvoiceStatusRejected = "rejected"
	InvoiceStatusExpired  = "expired"
)

// Invoice maps to the `invoices` table.
// Price is stamped at creation time and never recomputed. PlanDetails is a
// JSON payload carrying the invoice_type discriminator plus the fields that
// type requires (see billing.DecodeDetails).
type Invoice struct {
	InvoiceID        string    `gorm:"column:invoice_id;primaryKey;size:64" json:"invoice_id"`
	UserID           string    `gorm:"column:user_id;size:64;index" json:"user_id"`
	PlanDetails      string    `gorm:"column:plan_details;type:text" json:"plan_details"`
	Price            int64     `gorm:"column:price" json:"price"`
	FromWalletAmount int64     `gorm:"column:from_wallet_amount;default:0" json:"from_wallet_amount"`
	Status           string    `gorm:"column:status;size:20;index;default:pending" json:"status"`
	ApprovedBy       string    `gorm:"column:approved_by;size:64" json:"approved_by"`
	CreatedAt        time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}
