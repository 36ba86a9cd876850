package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"marzsell/internal/billing"
	"marzsell/internal/pricing"
)

// InvoiceHandler exposes invoice creation and the approval workflow to the
// admin panel.
type InvoiceHandler struct {
	repos      *Repos
	controller *billing.Controller
	cache      *pricing.Cache
	logger     *zap.Logger
}

func NewInvoiceHandler(repos *Repos, controller *billing.Controller, cache *pricing.Cache, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{repos: repos, controller: controller, cache: cache, logger: logger}
}

// Handle routes invoice API requests.
// POST /api/invoices
func (h *InvoiceHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "invoices":
		return h.listInvoices(c, body)
	case "invoice":
		return h.getInvoice(c, body)
	case "invoice_add":
		return h.addInvoice(c, body)
	case "approve":
		return h.approve(c, body)
	case "reject":
		return h.reject(c, body)
	case "pay_wallet":
		return h.payWallet(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *InvoiceHandler) listInvoices(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "limit", 50)
	page := getIntField(body, "page", 1)
	q := getStringField(body, "q")

	invoices, total, err := h.repos.Invoice.FindAll(limit, page, q)
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		return errorResponse(c, "Failed to retrieve invoices")
	}

	return successResponse(c, "Successful", paginatedResponse(invoices, total, page, limit))
}

func (h *InvoiceHandler) getInvoice(c echo.Context, body map[string]interface{}) error {
	invoiceID := getStringField(body, "invoice_id")
	if invoiceID == "" {
		return errorResponse(c, "invoice_id is required")
	}

	invoice, err := h.repos.Invoice.FindByID(invoiceID)
	if err != nil {
		h.logger.Error("Failed to load invoice", zap.Error(err))
		return errorResponse(c, "Failed to retrieve invoice")
	}
	if invoice == nil {
		return errorResponse(c, "Invoice not found")
	}

	return successResponse(c, "Successful", invoice)
}

// addInvoice creates a pending invoice. For volumetric types the price is
// computed by the pricing engine at creation time; wallet charges and
// manual invoices carry an explicit amount.
func (h *InvoiceHandler) addInvoice(c echo.Context, body map[string]interface{}) error {
	userID := getStringField(body, "user_id")
	if userID == "" {
		return errorResponse(c, "user_id is required")
	}

	invoiceType := billing.InvoiceType(getStringField(body, "invoice_type"))
	username := getStringField(body, "username")
	volume := getIntField(body, "volume", 0)
	duration := getIntField(body, "duration", 0)
	maxIPs := getIntField(body, "max_ips", 0)
	amount := getInt64Field(body, "amount", 0)
	fromWallet := getInt64Field(body, "from_wallet", 0)

	var details billing.Details
	var price int64

	switch invoiceType {
	case billing.TypeWalletCharge:
		if amount <= 0 {
			return errorResponse(c, "amount must be positive for a wallet charge")
		}
		details = billing.WalletChargeDetails{}
		price = amount

	case billing.TypeManualInvoice:
		if username == "" {
			return errorResponse(c, "username is required")
		}
		if amount < 0 {
			return errorResponse(c, "amount must not be negative")
		}
		details = billing.ManualDetails{Username: username, VolumeGB: volume, DurationDays: duration}
		price = amount

	case billing.TypeDataTopUp:
		details = billing.TopUpDetails{Username: username, VolumeGB: volume}
		quoted, err := h.cache.Quote(c.Request().Context(), volume, 1)
		if err != nil {
			return h.quoteError(c, err)
		}
		price = quoted

	case billing.TypeNewUserCustom:
		details = billing.NewAccountDetails{Username: username, VolumeGB: volume, DurationDays: duration, MaxIPs: maxIPs}
		quoted, err := h.cache.Quote(c.Request().Context(), volume, duration)
		if err != nil {
			return h.quoteError(c, err)
		}
		price = quoted

	case billing.TypeNewUserUnlimited:
		// Unlimited plans are flat-priced by the admin, not by the tier walk.
		if amount <= 0 {
			return errorResponse(c, "amount must be positive for an unlimited plan")
		}
		details = billing.NewAccountDetails{Username: username, DurationDays: duration, MaxIPs: maxIPs, Unlimited: true}
		price = amount

	case billing.TypeRenewal:
		details = billing.RenewalDetails{Username: username, VolumeGB: volume, DurationDays: duration}
		if volume > 0 && duration > 0 {
			quoted, err := h.cache.Quote(c.Request().Context(), volume, duration)
			if err != nil {
				return h.quoteError(c, err)
			}
			price = quoted
		} else {
			if amount <= 0 {
				return errorResponse(c, "amount is required when renewal terms come from the stored note")
			}
			price = amount
		}

	default:
		return errorResponse(c, "Unknown invoice_type")
	}

	invoiceID, err := h.controller.CreateInvoice(c.Request().Context(), userID, details, price, fromWallet)
	if err != nil {
		var incomplete *billing.IncompleteDetailsError
		if errors.As(err, &incomplete) {
			return errorResponse(c, incomplete.Error())
		}
		h.logger.Error("Failed to create invoice", zap.Error(err))
		return errorResponse(c, "Failed to create invoice")
	}

	return successResponse(c, "Invoice created", map[string]interface{}{
		"invoice_id": invoiceID,
		"price":      price,
	})
}

func (h *InvoiceHandler) quoteError(c echo.Context, err error) error {
	if errors.Is(err, pricing.ErrNotConfigured) {
		return errorResponse(c, "Pricing is not configured")
	}
	if errors.Is(err, pricing.ErrInvalidInput) {
		return errorResponse(c, "volume and duration must be positive")
	}
	h.logger.Error("Quote failed", zap.Error(err))
	return errorResponse(c, "Failed to compute price")
}

func (h *InvoiceHandler) approve(c echo.Context, body map[string]interface{}) error {
	invoiceID := getStringField(body, "invoice_id")
	approver := getStringField(body, "approver")
	if invoiceID == "" {
		return errorResponse(c, "invoice_id is required")
	}

	outcome, err := h.controller.RequestApproval(c.Request().Context(), invoiceID, approver)
	if err != nil {
		return h.workflowError(c, err)
	}
	if outcome == billing.OutcomeAlreadyProcessed {
		return successResponse(c, "Invoice already handled", map[string]interface{}{"outcome": outcome})
	}
	return successResponse(c, "Invoice approved", map[string]interface{}{"outcome": outcome})
}

func (h *InvoiceHandler) reject(c echo.Context, body map[string]interface{}) error {
	invoiceID := getStringField(body, "invoice_id")
	approver := getStringField(body, "approver")
	if invoiceID == "" {
		return errorResponse(c, "invoice_id is required")
	}

	outcome, err := h.controller.RequestRejection(c.Request().Context(), invoiceID, approver)
	if err != nil {
		h.logger.Error("Rejection failed", zap.Error(err))
		return errorResponse(c, "Failed to reject invoice")
	}
	if outcome == billing.OutcomeAlreadyProcessed {
		return successResponse(c, "Invoice already handled", map[string]interface{}{"outcome": outcome})
	}
	return successResponse(c, "Invoice rejected", map[string]interface{}{"outcome": outcome})
}

func (h *InvoiceHandler) payWallet(c echo.Context, body map[string]interface{}) error {
	invoiceID := getStringField(body, "invoice_id")
	if invoiceID == "" {
		return errorResponse(c, "invoice_id is required")
	}

	outcome, err := h.controller.PayFromWallet(c.Request().Context(), invoiceID)
	if err != nil {
		return h.workflowError(c, err)
	}
	if outcome == billing.OutcomeAlreadyProcessed {
		return successResponse(c, "Invoice already handled", map[string]interface{}{"outcome": outcome})
	}
	return successResponse(c, "Paid from wallet and approved", map[string]interface{}{"outcome": outcome})
}

// workflowError maps billing errors onto admin-facing messages carrying the
// failure class, so the admin can decide between retry and manual fix.
func (h *InvoiceHandler) workflowError(c echo.Context, err error) error {
	if errors.Is(err, billing.ErrInsufficientFunds) {
		return errorResponse(c, "Insufficient wallet balance; invoice left pending")
	}

	var incomplete *billing.IncompleteDetailsError
	if errors.As(err, &incomplete) {
		return errorResponse(c, "Invoice data incomplete: "+incomplete.Error())
	}

	var fulfillment *billing.FulfillmentError
	if errors.As(err, &fulfillment) {
		h.logger.Error("Fulfillment failed", zap.Error(err))
		return errorResponse(c, "Fulfillment failed ("+fulfillment.Step+"); invoice left pending, retry possible")
	}

	h.logger.Error("Approval failed", zap.Error(err))
	return errorResponse(c, "Failed to process invoice")
}
