package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/config"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/reporting"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/storage/memory"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/bookstore-backoffice/internal/storage/redis"
)

// Dependencies содержит хранилища и внешние подключения приложения.
// Выбор реализации определяется конфигурацией: пустой DSN — in-memory
// хранилища, пустой адрес Redis — без кэша отчётов.
type Dependencies struct {
	Sales     domain.SaleRepository
	Inventory domain.InventoryRepository
	Analytics domain.AnalyticsRepository
	Outbox    domain.OutboxRepository
	Processed domain.ProcessedEventRepository
	Audit     domain.AuditRepository
	Catalog   domain.ProductCatalog

	ReportCache reporting.ReportCache

	Store  *postgres.Store
	Logger *log.Entry

	closers []func() error
}

// NewDependencies собирает зависимости приложения по конфигурации.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		deps.Store = store
		deps.closers = append(deps.closers, store.Close)
		deps.Sales = postgres.NewSaleRepository(store)
		deps.Inventory = postgres.NewInventoryRepository(store)
		deps.Analytics = postgres.NewAnalyticsRepository(store)
		deps.Outbox = postgres.NewOutboxRepository(store)
		deps.Processed = postgres.NewProcessedEventRepository(store)
		deps.Audit = postgres.NewAuditRepository(store)
		deps.Catalog = postgres.NewProductCatalog(store)
		logger.Info("postgres storage initialized")
	} else {
		deps.Sales = memory.NewSaleRepository()
		deps.Inventory = memory.NewInventoryRepository()
		deps.Analytics = memory.NewAnalyticsRepository()
		deps.Outbox = memory.NewOutboxRepository()
		deps.Processed = memory.NewProcessedEventRepository()
		deps.Audit = memory.NewAuditRepository()
		deps.Catalog = memory.NewProductCatalog()
		logger.Info("in-memory storage initialized")
	}

	if cfg.RedisAddr != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		deps.ReportCache = redisstore.NewReportCache(client)
		deps.closers = append(deps.closers, client.Close)
		logger.WithField("addr", cfg.RedisAddr).Info("redis report cache initialized")
	}

	return deps, nil
}

// Close освобождает подключения в обратном порядке создания.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}
