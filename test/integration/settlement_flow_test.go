package integration

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/messaging/membus"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/analytics"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/audit"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/inventory"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/outbox"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/sales"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/storage/memory"
)

// SettlementFlowTestSuite тестирует полный путь продажи: оркестратор →
// outbox → шина → консюмеры инвентаря и аналитики.
type SettlementFlowTestSuite struct {
	suite.Suite
	orchestrator *sales.Orchestrator
	worker       *outbox.Worker
	salesRepo    domain.SaleRepository
	inventory    domain.InventoryRepository
	analytics    domain.AnalyticsRepository
}

func (suite *SettlementFlowTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.salesRepo = memory.NewSaleRepository()
	suite.inventory = memory.NewInventoryRepository()
	suite.analytics = memory.NewAnalyticsRepository()
	outboxRepo := memory.NewOutboxRepository()
	processed := memory.NewProcessedEventRepository()

	catalog := memory.NewProductCatalog(
		domain.Product{ID: "book-1", Title: "The Pragmatic Programmer", PriceMinor: 1000, Active: true},
	)
	require.NoError(suite.T(), suite.inventory.Put(domain.InventoryRecord{
		BookID: "book-1", CurrentStock: 10, MinStock: 2, MaxStock: 30,
	}))

	suite.orchestrator = sales.NewOrchestratorWithoutMetrics(
		suite.salesRepo, suite.inventory, catalog, outboxRepo,
		audit.NewRecorder(memory.NewAuditRepository(), logger, nil), logger,
	)

	bus := membus.NewBus(logger)
	bus.Subscribe(inventory.NewConsumerWithoutMetrics(suite.inventory, processed, logger).HandleOutboxMessage)
	bus.Subscribe(analytics.NewAggregatorWithoutMetrics(suite.analytics, suite.inventory, processed, logger).HandleOutboxMessage)

	suite.worker = outbox.NewWorker(outboxRepo, bus, outbox.WithRetryBaseDelay(0))
}

// drainOutbox публикует накопленные события, как это делает фоновой воркер.
func (suite *SettlementFlowTestSuite) drainOutbox() {
	suite.worker.ProcessOnce(context.Background())
}

func (suite *SettlementFlowTestSuite) TestCompletedSaleSettlement() {
	sale, err := suite.orchestrator.CreateSale(sales.CreateSaleInput{
		SellerID: "seller-1",
		Items:    []sales.CreateSaleItemInput{{BookID: "book-1", Qty: 2}},
	})
	require.NoError(suite.T(), err)
	require.EqualValues(suite.T(), 2000, sale.SubtotalMinor)
	require.EqualValues(suite.T(), 380, sale.TaxMinor)
	require.EqualValues(suite.T(), 2380, sale.TotalMinor)

	_, err = suite.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCompleted, "card")
	require.NoError(suite.T(), err)

	suite.drainOutbox()

	record, err := suite.inventory.Get("book-1")
	require.NoError(suite.T(), err)
	require.EqualValues(suite.T(), 8, record.CurrentStock)

	movements, err := suite.inventory.MovementsByReference(sale.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), movements, 1)
	require.Equal(suite.T(), domain.MovementTypeSale, movements[0].Type)
	require.EqualValues(suite.T(), -2, movements[0].QuantityDelta)

	bookStats, err := suite.analytics.Get("book-1")
	require.NoError(suite.T(), err)
	require.EqualValues(suite.T(), 2, bookStats.TotalUnitsSold)
	require.EqualValues(suite.T(), 2000, bookStats.TotalRevenueMinor)

	// Повторный прогон воркера идемпотентен: pending-записей больше нет.
	suite.drainOutbox()
	record, err = suite.inventory.Get("book-1")
	require.NoError(suite.T(), err)
	require.EqualValues(suite.T(), 8, record.CurrentStock)
}

func (suite *SettlementFlowTestSuite) TestCompletedSaleIsFinal() {
	sale, err := suite.orchestrator.CreateSale(sales.CreateSaleInput{
		SellerID: "seller-1",
		Items:    []sales.CreateSaleItemInput{{BookID: "book-1", Qty: 3}},
	})
	require.NoError(suite.T(), err)

	_, err = suite.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCompleted, "cash")
	require.NoError(suite.T(), err)
	suite.drainOutbox()

	record, err := suite.inventory.Get("book-1")
	require.NoError(suite.T(), err)
	require.EqualValues(suite.T(), 7, record.CurrentStock)

	// Отмена после завершения запрещена: статус терминальный, компенсация
	// выполняется только событием, которого здесь нет.
	_, err = suite.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCancelled, "")
	require.ErrorIs(suite.T(), err, domain.ErrSaleAlreadyFinal)
}

func (suite *SettlementFlowTestSuite) TestCancelledPendingSaleKeepsStock() {
	sale, err := suite.orchestrator.CreateSale(sales.CreateSaleInput{
		SellerID: "seller-1",
		Items:    []sales.CreateSaleItemInput{{BookID: "book-1", Qty: 4}},
	})
	require.NoError(suite.T(), err)

	_, err = suite.orchestrator.UpdateStatus(sale.ID, domain.SaleStatusCancelled, "")
	require.NoError(suite.T(), err)
	suite.drainOutbox()

	// Списания не было — отмена остатки не трогает.
	record, err := suite.inventory.Get("book-1")
	require.NoError(suite.T(), err)
	require.EqualValues(suite.T(), 10, record.CurrentStock)

	movements, err := suite.inventory.MovementsByReference(sale.ID)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), movements)

	// Аналитика завершённых продаж не получала.
	_, err = suite.analytics.Get("book-1")
	require.ErrorIs(suite.T(), err, domain.ErrAnalyticsNotFound)
}

func (suite *SettlementFlowTestSuite) TestInsufficientStockRejection() {
	_, err := suite.orchestrator.CreateSale(sales.CreateSaleInput{
		SellerID: "seller-1",
		Items:    []sales.CreateSaleItemInput{{BookID: "book-1", Qty: 11}},
	})
	require.Error(suite.T(), err)
	require.True(suite.T(), domain.IsValidation(err))
	require.Contains(suite.T(), err.Error(), "insufficient stock for book book-1: available 10, requested 11")
}

func TestSettlementFlowTestSuite(t *testing.T) {
	suite.Run(t, new(SettlementFlowTestSuite))
}
