package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"marzsell/internal/models"
	"marzsell/internal/repository"
)

// Response helpers for the admin API envelope.
func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

func paginatedResponse(data interface{}, total int64, page, limit int) models.PaginatedResponse {
	return models.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 50
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return pages
}

// parseBodyAction extracts the "actions" field from the request body; all
// admin API requests route through it.
func parseBodyAction(c echo.Context) (string, map[string]interface{}, error) {
	body := make(map[string]interface{})
	if err := c.Bind(&body); err != nil {
		return "", nil, err
	}
	action, _ := body["actions"].(string)
	return action, body, nil
}

// getStringField gets a string field from the body map.
func getStringField(body map[string]interface{}, key string) string {
	if v, ok := body[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%.0f", f)
		}
	}
	return ""
}

// getIntField gets an int field from the body map.
func getIntField(body map[string]interface{}, key string, defaultVal int) int {
	if v, ok := body[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		case string:
			if i, err := strconv.Atoi(t); err == nil {
				return i
			}
		}
	}
	return defaultVal
}

// getInt64Field gets an int64 field from the body map.
func getInt64Field(body map[string]interface{}, key string, defaultVal int64) int64 {
	if v, ok := body[key]; ok {
		switch t := v.(type) {
		case float64:
			return int64(t)
		case int:
			return int64(t)
		case string:
			if i, err := strconv.ParseInt(t, 10, 64); err == nil {
				return i
			}
		}
	}
	return defaultVal
}

// Repos bundles the repositories needed by API handlers.
type Repos struct {
	Tier    *repository.TierRepository
	Invoice *repository.InvoiceRepository
	Wallet  *repository.WalletRepository
	Note    *repository.NoteRepository
	Setting *repository.SettingRepository
}
