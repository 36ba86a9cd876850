package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"marzsell/internal/billing"
	"marzsell/internal/handler/api"
	"marzsell/internal/middleware"
	"marzsell/internal/pricing"
	"marzsell/internal/repository"

	"gorm.io/gorm"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	controller *billing.Controller,
	cache *pricing.Cache,
	logger *zap.Logger,
	apiKey string,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Repositories
	repos := &api.Repos{
		Tier:    repository.NewTierRepository(db),
		Invoice: repository.NewInvoiceRepository(db),
		Wallet:  repository.NewWalletRepository(db),
		Note:    repository.NewNoteRepository(db),
		Setting: repository.NewSettingRepository(db),
	}

	// Handlers
	pricingHandler := api.NewPricingHandler(repos, cache, logger)
	invoiceHandler := api.NewInvoiceHandler(repos, controller, cache, logger)
	walletHandler := api.NewWalletHandler(repos, logger)

	// API group with auth middleware
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(apiKey))

	apiGroup.POST("/pricing", pricingHandler.Handle)
	apiGroup.POST("/invoices", invoiceHandler.Handle)
	apiGroup.POST("/wallets", walletHandler.Handle)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
