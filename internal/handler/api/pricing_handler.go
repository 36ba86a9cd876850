package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"marzsell/internal/models"
	"marzsell/internal/pricing"
)

// PricingHandler manages tiers, the base daily rate, and price quotes.
// Every write invalidates the pricing cache synchronously so the next
// quote always sees the new table.
type PricingHandler struct {
	repos  *Repos
	cache  *pricing.Cache
	logger *zap.Logger
}

func NewPricingHandler(repos *Repos, cache *pricing.Cache, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{repos: repos, cache: cache, logger: logger}
}

// Handle routes pricing API requests.
// POST /api/pricing
func (h *PricingHandler) Handle(c echo.Context) error {
	action, body, err := parseBodyAction(c)
	if err != nil {
		return errorResponse(c, "Invalid request body")
	}

	switch action {
	case "tiers":
		return h.listTiers(c)
	case "tier_add":
		return h.addTier(c, body)
	case "tier_update":
		return h.updateTier(c, body)
	case "tier_delete":
		return h.deleteTier(c, body)
	case "base_rate":
		return h.baseRate(c)
	case "base_rate_set":
		return h.setBaseRate(c, body)
	case "quote":
		return h.quote(c, body)
	default:
		return errorResponse(c, "Unknown action: "+action)
	}
}

func (h *PricingHandler) listTiers(c echo.Context) error {
	tiers, err := h.repos.Tier.FindAll()
	if err != nil {
		h.logger.Error("Failed to list tiers", zap.Error(err))
		return errorResponse(c, "Failed to retrieve tiers")
	}
	return successResponse(c, "Successful", tiers)
}

func (h *PricingHandler) addTier(c echo.Context, body map[string]interface{}) error {
	limit := getIntField(body, "volume_limit_gb", 0)
	price := getInt64Field(body, "price_per_gb", -1)
	if limit <= 0 {
		return errorResponse(c, "volume_limit_gb must be positive")
	}
	if price < 0 {
		return errorResponse(c, "price_per_gb must not be negative")
	}

	tier := &models.PricingTier{
		Name:          getStringField(body, "name"),
		VolumeLimitGB: limit,
		PricePerGB:    price,
	}
	if err := h.repos.Tier.Create(tier); err != nil {
		h.logger.Error("Failed to create tier", zap.Error(err))
		return errorResponse(c, "Failed to create tier (duplicate volume limit?)")
	}

	h.cache.Invalidate(c.Request().Context())
	return successResponse(c, "Tier created", tier)
}

func (h *PricingHandler) updateTier(c echo.Context, body map[string]interface{}) error {
	id := getIntField(body, "id", 0)
	if id <= 0 {
		return errorResponse(c, "id is required")
	}

	updates := map[string]interface{}{}
	if name := getStringField(body, "name"); name != "" {
		updates["name"] = name
	}
	if limit := getIntField(body, "volume_limit_gb", 0); limit > 0 {
		updates["volume_limit_gb"] = limit
	}
	if price := getInt64Field(body, "price_per_gb", -1); price >= 0 {
		updates["price_per_gb"] = price
	}
	if len(updates) == 0 {
		return errorResponse(c, "Nothing to update")
	}

	if err := h.repos.Tier.Update(uint(id), updates); err != nil {
		h.logger.Error("Failed to update tier", zap.Error(err))
		return errorResponse(c, "Failed to update tier")
	}

	h.cache.Invalidate(c.Request().Context())
	return successResponse(c, "Tier updated", nil)
}

func (h *PricingHandler) deleteTier(c echo.Context, body map[string]interface{}) error {
	id := getIntField(body, "id", 0)
	if id <= 0 {
		return errorResponse(c, "id is required")
	}

	if err := h.repos.Tier.Delete(uint(id)); err != nil {
		h.logger.Error("Failed to delete tier", zap.Error(err))
		return errorResponse(c, "Failed to delete tier")
	}

	h.cache.Invalidate(c.Request().Context())
	return successResponse(c, "Tier deleted", nil)
}

func (h *PricingHandler) baseRate(c echo.Context) error {
	rate, set, err := h.repos.Setting.BaseDailyRate()
	if err != nil {
		h.logger.Error("Failed to read base rate", zap.Error(err))
		return errorResponse(c, "Failed to read base rate")
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"base_daily_rate": rate,
		"configured":      set,
	})
}

func (h *PricingHandler) setBaseRate(c echo.Context, body map[string]interface{}) error {
	raw := getStringField(body, "base_daily_rate")
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		return errorResponse(c, "base_daily_rate must be a non-negative number")
	}

	if err := h.repos.Setting.Set(models.SettingBaseDailyRate, rate.String()); err != nil {
		h.logger.Error("Failed to store base rate", zap.Error(err))
		return errorResponse(c, "Failed to store base rate")
	}

	h.cache.Invalidate(c.Request().Context())
	return successResponse(c, "Base rate updated", nil)
}

func (h *PricingHandler) quote(c echo.Context, body map[string]interface{}) error {
	volume := getIntField(body, "volume", 0)
	duration := getIntField(body, "duration", 0)

	price, err := h.cache.Quote(c.Request().Context(), volume, duration)
	if err != nil {
		if errors.Is(err, pricing.ErrNotConfigured) {
			return errorResponse(c, "Pricing is not configured")
		}
		if errors.Is(err, pricing.ErrInvalidInput) {
			return errorResponse(c, "volume and duration must be positive")
		}
		h.logger.Error("Quote failed", zap.Error(err))
		return errorResponse(c, "Failed to compute price")
	}

	return successResponse(c, "Successful", map[string]interface{}{
		"volume":   volume,
		"duration": duration,
		"price":    price,
	})
}
