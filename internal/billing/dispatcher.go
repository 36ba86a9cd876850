package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marzsell/internal/models"
	"marzsell/internal/panel"
)

// WalletLedger is the only surface through which balances move.
// Implementations must make Decrease a single atomic check-and-subtract
// per user so concurrent spends cannot both succeed.
type WalletLedger interface {
	GetBalance(userID string) (decimal.Decimal, error)
	Increase(userID string, amount decimal.Decimal) (decimal.Decimal, error)
	Decrease(userID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// NoteStore persists the username↔user link plus last-sold terms.
// FindByUsername returns (nil, nil) when no note exists.
type NoteStore interface {
	Upsert(note *models.SubscriptionNote) error
	FindByUsername(username string) (*models.SubscriptionNote, error)
}

// Dispatcher runs exactly one fulfillment action for an approved invoice,
// selected by the invoice_type discriminator. Every branch validates its
// inputs before any external call and persists nothing on failure.
type Dispatcher struct {
	wallet WalletLedger
	notes  NoteStore
	panel  panel.Client
	logger *zap.Logger
}

func NewDispatcher(wallet WalletLedger, notes NoteStore, panelClient panel.Client, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{wallet: wallet, notes: notes, panel: panelClient, logger: logger}
}

// Dispatch fulfills the invoice. The caller transitions the invoice status
// afterwards; a returned error means no durable fulfillment state may be
// assumed and the invoice must stay pending.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *models.Invoice) error {
	details, err := DecodeDetails(inv.PlanDetails)
	if err != nil {
		return err
	}

	switch t := details.(type) {
	case WalletChargeDetails:
		return d.chargeWallet(inv)
	case ManualDetails:
		return d.saveNote(t.Username, inv.UserID, t.VolumeGB, t.DurationDays, inv.Price)
	case LegacyDetails:
		d.logger.Warn("unrecognized invoice type, falling back to manual handling",
			zap.String("invoice_id", inv.InvoiceID),
			zap.String("raw_type", t.RawType))
		if t.Username == "" {
			return incompleteDetails(TypeManualInvoice, "username")
		}
		return d.saveNote(t.Username, inv.UserID, t.VolumeGB, t.DurationDays, inv.Price)
	case TopUpDetails:
		return d.topUp(ctx, t)
	case NewAccountDetails:
		return d.provision(ctx, inv, t)
	case RenewalDetails:
		return d.renew(ctx, inv, t)
	default:
		return fmt.Errorf("unhandled details variant %T", details)
	}
}

func (d *Dispatcher) chargeWallet(inv *models.Invoice) error {
	if inv.Price <= 0 {
		return incompleteDetails(TypeWalletCharge, "price")
	}
	_, err := d.wallet.Increase(inv.UserID, decimal.NewFromInt(inv.Price))
	return err
}

func (d *Dispatcher) topUp(ctx context.Context, t TopUpDetails) error {
	if err := d.panel.AddData(ctx, t.Username, t.VolumeGB); err != nil {
		return fulfillmentErr("data top-up", err)
	}
	return nil
}

// provision creates the panel account. An account that already exists is
// treated as success: a provisioning call may have timed out after the
// panel committed it, and a retry must not fail or duplicate.
func (d *Dispatcher) provision(ctx context.Context, inv *models.Invoice, t NewAccountDetails) error {
	existing, err := d.panel.GetAccount(ctx, t.Username)
	if err != nil && !errors.Is(err, panel.ErrAccountNotFound) {
		return fulfillmentErr("account lookup", err)
	}

	if existing != nil {
		d.logger.Info("panel account already exists, treating as provisioned",
			zap.String("invoice_id", inv.InvoiceID),
			zap.String("username", t.Username))
	} else {
		req := panel.CreateAccountRequest{
			Username:   t.Username,
			DataLimit:  int64(t.VolumeGB) * panel.BytesPerGB,
			ExpireDays: t.DurationDays,
			MaxIPs:     t.MaxIPs,
			Note:       "tg:" + inv.UserID,
		}
		if t.Unlimited {
			req.DataLimit = 0
		}
		if _, err := d.panel.CreateAccount(ctx, req); err != nil {
			return fulfillmentErr("account provisioning", err)
		}
	}

	return d.saveNote(t.Username, inv.UserID, t.VolumeGB, t.DurationDays, inv.Price)
}

// renew resets traffic and extends expiry. Missing duration/volume fall
// back to the stored subscription note; with neither present the invoice
// data is incomplete and the admin has to fix it.
func (d *Dispatcher) renew(ctx context.Context, inv *models.Invoice, t RenewalDetails) error {
	volume, duration := t.VolumeGB, t.DurationDays
	if volume <= 0 || duration <= 0 {
		note, err := d.notes.FindByUsername(t.Username)
		if err != nil {
			return err
		}
		if note != nil {
			if volume <= 0 {
				volume = note.VolumeGB
			}
			if duration <= 0 {
				duration = note.DurationDays
			}
		}
	}
	var missing []string
	if duration <= 0 {
		missing = append(missing, "duration")
	}
	if volume <= 0 {
		missing = append(missing, "volume")
	}
	if len(missing) > 0 {
		return incompleteDetails(TypeRenewal, missing...)
	}

	acct, err := d.panel.GetAccount(ctx, t.Username)
	if err != nil {
		return fulfillmentErr("account lookup", err)
	}

	// Extend from the current expiry when still in the future, from now
	// when already lapsed.
	from := time.Now()
	if acct.ExpireAt > from.Unix() {
		from = time.Unix(acct.ExpireAt, 0)
	}
	newExpiry := from.Add(time.Duration(duration) * 24 * time.Hour).Unix()

	if err := d.panel.ResetTraffic(ctx, t.Username); err != nil {
		return fulfillmentErr("traffic reset", err)
	}
	if _, err := d.panel.ModifyAccount(ctx, t.Username, panel.ModifyAccountRequest{
		DataLimit: int64(volume) * panel.BytesPerGB,
		ExpireAt:  newExpiry,
	}); err != nil {
		return fulfillmentErr("expiry extension", err)
	}

	return d.saveNote(t.Username, inv.UserID, volume, duration, inv.Price)
}

func (d *Dispatcher) saveNote(username, userID string, volumeGB, durationDays int, price int64) error {
	return d.notes.Upsert(&models.SubscriptionNote{
		Username:     username,
		UserID:       userID,
		VolumeGB:     volumeGB,
		DurationDays: durationDays,
		Price:        price,
	})
}
