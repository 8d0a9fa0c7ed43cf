package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/config"
	healthcheck "github.com/vladislavdragonenkov/bookstore-backoffice/internal/health"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/analytics"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/audit"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/dedupe"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/inventory"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/outbox"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/reporting"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/sales"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/version"
)

// Run собирает пайплайн расчёта продаж и обслуживает HTTP до отмены ctx.
//
// Топология: оркестратор пишет события в transactional outbox; outbox
// worker публикует их в шину (Kafka или in-process); консюмеры
// инвентаря и аналитики обрабатывают поток независимо и идемпотентно.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	auditRecorder := audit.NewRecorder(deps.Audit, nil, nil)
	orchestrator := sales.NewOrchestrator(
		deps.Sales, deps.Inventory, deps.Catalog, deps.Outbox, auditRecorder, nil,
	)
	inventoryConsumer := inventory.NewConsumer(deps.Inventory, deps.Processed, nil)
	analyticsAggregator := analytics.NewAggregator(deps.Analytics, deps.Inventory, deps.Processed, nil)
	reportingService := reporting.NewService(
		deps.Sales, deps.Inventory, deps.Analytics, deps.Audit, deps.ReportCache, nil,
	)

	messaging, err := initMessaging(cfg, inventoryConsumer, analyticsAggregator, logger)
	if err != nil {
		return err
	}
	defer messaging.Close(logger)

	outboxWorker := outbox.NewWorker(
		deps.Outbox,
		messaging.Publisher,
		outbox.WithDLQPublisher(messaging.DLQPublisher),
		outbox.WithPollInterval(cfg.OutboxPollInterval()),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
	)
	go outboxWorker.Run(ctx)

	cleanupWorker := dedupe.NewCleanupWorker(
		deps.Processed,
		dedupe.WithInterval(cfg.DedupeCleanupInterval()),
	)
	go cleanupWorker.Run(ctx)

	if err := messaging.Start(ctx); err != nil {
		return err
	}

	v, _, _ := version.Info()
	healthHandler := healthcheck.NewHandler(v)
	if deps.Store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewSimpleChecker("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return deps.Store.Ping(checkCtx)
		}))
	}

	handler := httpapi.NewHandler(orchestrator, reportingService, nil)
	router := httpapi.NewRouter(handler, healthHandler)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http shutdown with error")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
