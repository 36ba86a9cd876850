package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"marzsell/internal/billing"
	"marzsell/internal/models"
	"marzsell/internal/panel"
	"marzsell/internal/repository"
)

// Scheduler runs the periodic maintenance jobs around the invoice core.
type Scheduler struct {
	cron       *cron.Cron
	controller *billing.Controller
	invoices   *repository.InvoiceRepository
	settings   *repository.SettingRepository
	panel      panel.Client
	notifier   billing.Notifier
	logger     *zap.Logger
}

func New(controller *billing.Controller, invoices *repository.InvoiceRepository, settings *repository.SettingRepository, panelClient panel.Client, notifier billing.Notifier, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		controller: controller,
		invoices:   invoices,
		settings:   settings,
		panel:      panelClient,
		notifier:   notifier,
		logger:     logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Expire stale pending invoices - every 10 minutes
	s.cron.AddFunc("0 */10 * * * *", func() {
		s.logger.Debug("Running: invoice expiry sweep")
		s.expireSweep()
	})

	// Panel uptime check - every 5 minutes
	s.cron.AddFunc("0 */5 * * * *", func() {
		s.logger.Debug("Running: panel uptime check")
		s.panelUptimeCheck()
	})

	// Daily pending-invoice summary for the admin - at 23:45
	s.cron.AddFunc("0 45 23 * * *", func() {
		s.logger.Debug("Running: daily pending summary")
		s.dailyPendingSummary()
	})

	s.cron.Start()
}

// Stop stops the scheduler and returns a context that is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) expireSweep() {
	ttl, err := s.settings.InvoiceTTL()
	if err != nil {
		s.logger.Error("failed to read invoice TTL", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.controller.ExpirePendingOlderThan(ctx, ttl)
	if err != nil {
		s.logger.Error("invoice expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("invoice expiry sweep done", zap.Int64("expired", expired))
	}
}

func (s *Scheduler) panelUptimeCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	status := "up " + time.Now().Format(time.RFC3339)
	if err := s.panel.Ping(ctx); err != nil {
		s.logger.Warn("panel unreachable", zap.Error(err))
		status = "down " + time.Now().Format(time.RFC3339)
	}
	if err := s.settings.Set(models.SettingPanelUptimeLog, status); err != nil {
		s.logger.Error("failed to record panel uptime", zap.Error(err))
	}
}

func (s *Scheduler) dailyPendingSummary() {
	pending, err := s.invoices.CountByStatus(models.InvoiceStatusPending)
	if err != nil {
		s.logger.Error("failed to count pending invoices", zap.Error(err))
		return
	}
	if pending == 0 || s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msg := fmt.Sprintf("Daily summary: %d invoice(s) awaiting review.", pending)
	if err := s.notifier.NotifyAdmin(ctx, msg); err != nil {
		s.logger.Warn("daily summary delivery failed", zap.Error(err))
	}
}
