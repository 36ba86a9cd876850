package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marzsell/internal/billing"
)

// WalletHandler exposes wallet balance reads and manual admin adjustments
// (gift credits, corrections). Purchases never go through here; they flow
// through the invoice lifecycle.
type WalletHandler struct {
	repos  *Repos
	logger *zap.Logger
}

func NewWalletHandler(repos *Repos, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{repos: repos, logger: logger}
}

// Handle routes wallet API requests.
// POST /api/wallets
func (h *WalletHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "balance":
		return h.balance(c, body)
	case "credit":
		return h.credit(c, body)
	case "debit":
		return h.debit(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *WalletHandler) balance(c echo.Context, body map[string]interface{}) error {
	userID := getStringField(body, "user_id")
	if userID == "" {
		return errorResponse(c, "user_id is required")
	}

	balance, err := h.repos.Wallet.GetBalance(userID)
	if err != nil {
		h.logger.Error("Failed to read balance", zap.Error(err))
		return errorResponse(c, "Failed to read balance")
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"user_id": userID,
		"balance": balance,
	})
}

func (h *WalletHandler) credit(c echo.Context, body map[string]interface{}) error {
	userID, amount, err := h.parseMutation(body)
	if err != nil {
		return errorResponse(c, err.Error())
	}

	newBalance, err := h.repos.Wallet.Increase(userID, amount)
	if err != nil {
		if errors.Is(err, billing.ErrNonPositiveAmount) {
			return errorResponse(c, "amount must be positive")
		}
		h.logger.Error("Wallet credit failed", zap.Error(err))
		return errorResponse(c, "Failed to credit wallet")
	}

	return successResponse(c, "Wallet credited", map[string]interface{}{
		"user_id": userID,
		"balance": newBalance,
	})
}

func (h *WalletHandler) debit(c echo.Context, body map[string]interface{}) error {
	userID, amount, err := h.parseMutation(body)
	if err != nil {
		return errorResponse(c, err.Error())
	}

	newBalance, err := h.repos.Wallet.Decrease(userID, amount)
	if err != nil {
		if errors.Is(err, billing.ErrInsufficientFunds) {
			return errorResponse(c, "Insufficient balance")
		}
		if errors.Is(err, billing.ErrNonPositiveAmount) {
			return errorResponse(c, "amount must be positive")
		}
		h.logger.Error("Wallet debit failed", zap.Error(err))
		return errorResponse(c, "Failed to debit wallet")
	}

	return successResponse(c, "Wallet debited", map[string]interface{}{
		"user_id": userID,
		"balance": newBalance,
	})
}

func (h *WalletHandler) parseMutation(body map[string]interface{}) (string, decimal.Decimal, error) {
	userID := getStringField(body, "user_id")
	if userID == "" {
		return "", decimal.Zero, errors.New("user_id is required")
	}
	raw := getStringField(body, "amount")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return "", decimal.Zero, errors.New("amount must be a number")
	}
	return userID, amount, nil
}
