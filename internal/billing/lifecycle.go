package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marzsell/internal/models"
)

// InvoiceStore persists invoices and enforces transition legality: the
// Mark* methods are conditional on status = 'pending' and report whether
// the transition won. FindByID returns (nil, nil) when absent.
type InvoiceStore interface {
	Create(invoice *models.Invoice) error
	FindByID(invoiceID string) (*models.Invoice, error)
	MarkApproved(invoiceID, approver string) (bool, error)
	MarkRejected(invoiceID, approver string) (bool, error)
	ExpirePendingBefore(cutoff time.Time) (int64, error)
}

// Notifier delivers best-effort messages; failures are logged and never
// block a state transition.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, message string) error
	NotifyAdmin(ctx context.Context, message string) error
}

// Outcome of an approval or rejection request.
type Outcome string

const (
	OutcomeApproved         Outcome = "approved"
	OutcomeRejected         Outcome = "rejected"
	OutcomeAlreadyProcessed Outcome = "already_processed"
)

// Controller owns the invoice lifecycle: creation, the pending→terminal
// transitions, and the wallet capture around fulfillment. The stored
// status is the source of truth for "did this happen"; after any error
// callers must re-read it rather than trust in-memory state.
type Controller struct {
	invoices   InvoiceStore
	wallet     WalletLedger
	dispatcher *Dispatcher
	notifier   Notifier
	logger     *zap.Logger
	audit      *zap.Logger
	locks      keyedMutex
	now        func() time.Time
}

func NewController(invoices InvoiceStore, wallet WalletLedger, dispatcher *Dispatcher, notifier Notifier, logger *zap.Logger) *Controller {
	return &Controller{
		invoices:   invoices,
		wallet:     wallet,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
		audit:      logger.Named("audit"),
		now:        time.Now,
	}
}

// CreateInvoice stamps the price and persists a pending invoice. The price
// is never recomputed afterwards. fromWallet records the portion the
// customer chose to pay from wallet; it is held, not captured, until
// approval.
func (c *Controller) CreateInvoice(ctx context.Context, userID string, details Details, price, fromWallet int64) (string, error) {
	if price < 0 {
		return "", fmt.Errorf("invoice price must not be negative, got %d", price)
	}
	if fromWallet < 0 || fromWallet > price {
		return "", fmt.Errorf("wallet portion %d out of range for price %d", fromWallet, price)
	}

	raw, err := EncodeDetails(details)
	if err != nil {
		return "", err
	}

	invoice := &models.Invoice{
		InvoiceID:        uuid.NewString(),
		UserID:           userID,
		PlanDetails:      raw,
		Price:            price,
		FromWalletAmount: fromWallet,
		Status:           models.InvoiceStatusPending,
		CreatedAt:        c.now(),
	}
	if err := c.invoices.Create(invoice); err != nil {
		return "", err
	}

	c.audit.Info("invoice created",
		zap.String("invoice_id", invoice.InvoiceID),
		zap.String("user_id", userID),
		zap.String("invoice_type", string(details.Type())),
		zap.Int64("price", price),
		zap.Int64("from_wallet", fromWallet))
	return invoice.InvoiceID, nil
}

// RequestApproval captures the wallet hold, runs fulfillment, and
// transitions pending → approved. A non-pending invoice yields
// OutcomeAlreadyProcessed with zero side effects. Fulfillment failure
// leaves the invoice pending and credits the captured hold back.
func (c *Controller) RequestApproval(ctx context.Context, invoiceID, approver string) (Outcome, error) {
	unlock := c.locks.lock(invoiceID)
	defer unlock()

	invoice, err := c.invoices.FindByID(invoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil || invoice.Status != models.InvoiceStatusPending {
		return OutcomeAlreadyProcessed, nil
	}

	debited := decimal.Zero
	if invoice.FromWalletAmount > 0 {
		amount := decimal.NewFromInt(invoice.FromWalletAmount)
		if _, err := c.wallet.Decrease(invoice.UserID, amount); err != nil {
			return "", err
		}
		debited = amount
	}

	return c.finishApproval(ctx, invoice, approver, debited)
}

// PayFromWallet is the synchronous wallet payment path: the full price is
// debited and, if that succeeds, the invoice is approved immediately with
// the hold already settled.
func (c *Controller) PayFromWallet(ctx context.Context, invoiceID string) (Outcome, error) {
	unlock := c.locks.lock(invoiceID)
	defer unlock()

	invoice, err := c.invoices.FindByID(invoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil || invoice.Status != models.InvoiceStatusPending {
		return OutcomeAlreadyProcessed, nil
	}

	debited := decimal.Zero
	if invoice.Price > 0 {
		amount := decimal.NewFromInt(invoice.Price)
		if _, err := c.wallet.Decrease(invoice.UserID, amount); err != nil {
			return "", err
		}
		debited = amount
	}

	return c.finishApproval(ctx, invoice, "wallet", debited)
}

// finishApproval dispatches fulfillment and commits the transition. Called
// with the per-invoice lock held and any wallet debit already taken;
// debited is credited back on every path that does not end approved.
func (c *Controller) finishApproval(ctx context.Context, invoice *models.Invoice, approver string, debited decimal.Decimal) (Outcome, error) {
	if err := c.dispatcher.Dispatch(ctx, invoice); err != nil {
		c.refund(invoice.UserID, debited)
		c.audit.Warn("fulfillment failed, invoice left pending",
			zap.String("invoice_id", invoice.InvoiceID),
			zap.Error(err))
		c.alertAdmin(ctx, fmt.Sprintf("Invoice %s fulfillment failed: %v. Invoice left pending, retry possible.",
			invoice.InvoiceID, err))
		return "", err
	}

	ok, err := c.invoices.MarkApproved(invoice.InvoiceID, approver)
	if err != nil {
		// Fulfillment ran but the transition did not commit; the invoice
		// stays pending and a retry will lean on fulfillment idempotence.
		c.refund(invoice.UserID, debited)
		c.audit.Error("approval transition failed after fulfillment",
			zap.String("invoice_id", invoice.InvoiceID),
			zap.Error(err))
		return "", err
	}
	if !ok {
		c.refund(invoice.UserID, debited)
		return OutcomeAlreadyProcessed, nil
	}

	c.notify(ctx, invoice.UserID, "Your payment was approved and your order has been fulfilled.")
	c.audit.Info("invoice approved",
		zap.String("invoice_id", invoice.InvoiceID),
		zap.String("user_id", invoice.UserID),
		zap.String("approver", approver),
		zap.Int64("price", invoice.Price),
		zap.String("wallet_captured", debited.String()))
	return OutcomeApproved, nil
}

// RequestRejection transitions pending → rejected. Funds are never touched
// by a rejection.
func (c *Controller) RequestRejection(ctx context.Context, invoiceID, approver string) (Outcome, error) {
	unlock := c.locks.lock(invoiceID)
	defer unlock()

	invoice, err := c.invoices.FindByID(invoiceID)
	if err != nil {
		return "", err
	}
	if invoice == nil || invoice.Status != models.InvoiceStatusPending {
		return OutcomeAlreadyProcessed, nil
	}

	ok, err := c.invoices.MarkRejected(invoiceID, approver)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeAlreadyProcessed, nil
	}

	c.notify(ctx, invoice.UserID, "Your payment was rejected. Contact support if you believe this is a mistake.")
	c.audit.Info("invoice rejected",
		zap.String("invoice_id", invoiceID),
		zap.String("user_id", invoice.UserID),
		zap.String("approver", approver))
	return OutcomeRejected, nil
}

// ExpirePendingOlderThan sweeps stale pending invoices into expired.
func (c *Controller) ExpirePendingOlderThan(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := c.now().Add(-threshold)
	expired, err := c.invoices.ExpirePendingBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		c.audit.Info("expired stale pending invoices",
			zap.Int64("count", expired),
			zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

// refund is the compensating credit for a wallet capture whose fulfillment
// did not complete. A failed refund is a money leak and gets the loudest
// log we have.
func (c *Controller) refund(userID string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	if _, err := c.wallet.Increase(userID, amount); err != nil {
		c.logger.Error("wallet refund failed, manual correction required",
			zap.String("user_id", userID),
			zap.String("amount", amount.String()),
			zap.Error(err))
	}
}

func (c *Controller) notify(ctx context.Context, userID, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyUser(ctx, userID, message); err != nil {
		c.logger.Warn("customer notification failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

func (c *Controller) alertAdmin(ctx context.Context, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.NotifyAdmin(ctx, message); err != nil {
		c.logger.Warn("admin alert failed", zap.Error(err))
	}
}

// keyedMutex serializes operations per invoice ID.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
