package sales

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/metrics"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/service/audit"
)

// CreateSaleItemInput — одна позиция запроса на создание продажи.
type CreateSaleItemInput struct {
	BookID        string
	Qty           int32
	DiscountMinor int64
}

// CreateSaleInput — запрос на создание продажи.
type CreateSaleInput struct {
	Items         []CreateSaleItemInput
	DiscountMinor int64
	SellerID      string
}

// Orchestrator выполняет синхронную часть пайплайна: валидацию,
// прайсинг, атомарное сохранение продажи и постановку lifecycle-событий
// в transactional outbox. Остатки оркестратор не мутирует: списание
// выполняет консюмер инвентаря по событию sale.completed.
type Orchestrator struct {
	sales     domain.SaleRepository
	inventory domain.InventoryRepository
	catalog   domain.ProductCatalog
	outbox    domain.OutboxRepository
	audit     *audit.Recorder
	logger    *log.Entry
	metrics   *metrics.PipelineMetrics
	now       func() time.Time
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора. Паблишер
// событий — единственный долгоживущий экземпляр, собранный при старте
// процесса и переданный явно; глобального синглтона нет.
func NewOrchestrator(
	sales domain.SaleRepository,
	inventory domain.InventoryRepository,
	catalog domain.ProductCatalog,
	outbox domain.OutboxRepository,
	auditRecorder *audit.Recorder,
	logger *log.Entry,
) *Orchestrator {
	if logger == nil {
		logger = log.WithField("component", "sales-orchestrator")
	}
	return &Orchestrator{
		sales:     sales,
		inventory: inventory,
		catalog:   catalog,
		outbox:    outbox,
		audit:     auditRecorder,
		logger:    logger,
		metrics:   metrics.NewPipelineMetrics(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	sales domain.SaleRepository,
	inventory domain.InventoryRepository,
	catalog domain.ProductCatalog,
	outbox domain.OutboxRepository,
	auditRecorder *audit.Recorder,
	logger *log.Entry,
) *Orchestrator {
	o := NewOrchestrator(sales, inventory, catalog, outbox, auditRecorder, logger)
	o.metrics = nil
	return o
}

// CreateSale валидирует запрос против каталога и живых остатков,
// рассчитывает суммы и сохраняет продажу в статусе pending одной
// атомарной операцией: либо все позиции, либо ничего.
func (o *Orchestrator) CreateSale(input CreateSaleInput) (domain.Sale, error) {
	start := o.now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCreateSaleDuration(time.Since(start))
		}
	}()

	if err := validateCreateInput(input); err != nil {
		o.rejected(err)
		return domain.Sale{}, err
	}

	// Все книги резолвятся одной batch-выборкой из каталога.
	ids := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		ids = append(ids, item.BookID)
	}
	products, err := o.catalog.GetBatch(ids)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("resolve products: %w", err)
	}

	var fields []domain.FieldError
	for _, item := range input.Items {
		if _, ok := products[item.BookID]; !ok {
			fields = append(fields, domain.FieldError{
				Field:   "items",
				Message: fmt.Sprintf("unknown product %s", item.BookID),
			})
		}
	}
	if len(fields) > 0 {
		err := domain.NewValidationError(fields...)
		o.rejected(err)
		return domain.Sale{}, err
	}

	// Проверка остатков на момент создания. Продажа отклоняется целиком,
	// если дефицит есть хотя бы по одной позиции. Отсутствующая
	// inventory-запись означает нулевую доступность.
	for _, item := range input.Items {
		record, err := o.inventory.Get(item.BookID)
		available := int32(0)
		if err == nil {
			available = record.CurrentStock
		} else if err != domain.ErrInventoryNotFound {
			return domain.Sale{}, fmt.Errorf("read inventory for %s: %w", item.BookID, err)
		}
		if available < item.Qty {
			verr := domain.NewInsufficientStockError(item.BookID, available, item.Qty)
			o.rejected(verr)
			return domain.Sale{}, verr
		}
	}

	now := o.now()
	sale := domain.Sale{
		ID:            uuid.NewString(),
		SellerID:      input.SellerID,
		Status:        domain.SaleStatusPending,
		DiscountMinor: input.DiscountMinor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, item := range input.Items {
		product := products[item.BookID]
		sale.Items = append(sale.Items, domain.SaleItem{
			ID:             uuid.NewString(),
			BookID:         item.BookID,
			Qty:            item.Qty,
			UnitPriceMinor: product.PriceMinor,
			DiscountMinor:  item.DiscountMinor,
			CreatedAt:      now,
		})
	}
	sale.ComputeTotals()

	if errs := sale.ValidateInvariants(); len(errs) > 0 {
		return domain.Sale{}, fmt.Errorf("sale invariants violated: %v", errs)
	}

	if err := o.sales.Create(sale); err != nil {
		return domain.Sale{}, fmt.Errorf("persist sale: %w", err)
	}

	o.emitLifecycleEvent(sale, kafka.EventTypeSaleCreated)
	o.audit.Record(domain.AuditEntitySale, sale.ID, "create", input.SellerID, fmt.Sprintf("total_minor=%d items=%d", sale.TotalMinor, len(sale.Items)))
	if o.metrics != nil {
		o.metrics.RecordSaleCreated()
	}

	o.logger.WithFields(log.Fields{
		"sale_id":     sale.ID,
		"items":       len(sale.Items),
		"total_minor": sale.TotalMinor,
	}).Info("sale created")

	return sale, nil
}

// UpdateStatus переводит продажу из pending в терминальный статус.
// Повторный перевод терминальной продажи отклоняется: компенсация
// выполняется отдельным событием sale.cancelled, а не ретракцией.
func (o *Orchestrator) UpdateStatus(saleID string, newStatus domain.SaleStatus, paymentMethod string) (domain.Sale, error) {
	sale, err := o.sales.Get(saleID)
	if err != nil {
		return domain.Sale{}, err
	}

	if sale.IsTerminal() {
		return domain.Sale{}, domain.ErrSaleAlreadyFinal
	}
	if !sale.CanTransition(newStatus) {
		return domain.Sale{}, domain.ErrInvalidStatusTransition
	}
	if newStatus == domain.SaleStatusCompleted && paymentMethod == "" {
		verr := domain.NewValidationError(domain.FieldError{
			Field:   "payment_method",
			Message: "payment method is required to complete a sale",
		})
		o.rejected(verr)
		return domain.Sale{}, verr
	}

	now := o.now()
	sale.Status = newStatus
	sale.UpdatedAt = now
	switch newStatus {
	case domain.SaleStatusCompleted:
		sale.PaymentMethod = paymentMethod
		sale.CompletedAt = &now
	case domain.SaleStatusCancelled:
		sale.CancelledAt = &now
	}

	if err := o.saveWithRetry(&sale); err != nil {
		return domain.Sale{}, err
	}

	switch newStatus {
	case domain.SaleStatusCompleted:
		o.emitLifecycleEvent(sale, kafka.EventTypeSaleCompleted)
		o.audit.Record(domain.AuditEntitySale, sale.ID, "complete", sale.SellerID, "payment_method="+paymentMethod)
		if o.metrics != nil {
			o.metrics.RecordSaleCompleted()
		}
	case domain.SaleStatusCancelled:
		o.emitLifecycleEvent(sale, kafka.EventTypeSaleCancelled)
		o.audit.Record(domain.AuditEntitySale, sale.ID, "cancel", sale.SellerID, "")
		if o.metrics != nil {
			o.metrics.RecordSaleCancelled()
		}
	}

	o.logger.WithFields(log.Fields{
		"sale_id": sale.ID,
		"status":  sale.Status,
	}).Info("sale status updated")

	return sale, nil
}

// GetSale возвращает продажу по идентификатору.
func (o *Orchestrator) GetSale(id string) (domain.Sale, error) {
	return o.sales.Get(id)
}

// saveWithRetry сохраняет продажу, повторяя попытку при version conflict.
// После перезагрузки терминальная продажа не перезаписывается.
func (o *Orchestrator) saveWithRetry(sale *domain.Sale) error {
	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	target := sale.Status
	for attempt := 0; attempt < maxRetries; attempt++ {
		prevVersion := sale.Version
		err := o.sales.Save(*sale)
		if err == nil {
			sale.Version = prevVersion + 1
			return nil
		}
		if !domain.IsVersionConflict(err) || attempt == maxRetries-1 {
			o.logger.WithError(err).WithFields(log.Fields{
				"sale_id": sale.ID,
				"attempt": attempt + 1,
			}).Error("failed to persist sale status")
			return err
		}

		fresh, loadErr := o.sales.Get(sale.ID)
		if loadErr != nil {
			return loadErr
		}
		if fresh.IsTerminal() {
			return domain.ErrSaleAlreadyFinal
		}

		o.logger.WithFields(log.Fields{
			"sale_id": sale.ID,
			"attempt": attempt + 1,
		}).Warn("version conflict detected, retrying")

		// Переносим статусные поля на свежую версию.
		fresh.Status = target
		fresh.UpdatedAt = sale.UpdatedAt
		fresh.PaymentMethod = sale.PaymentMethod
		fresh.CompletedAt = sale.CompletedAt
		fresh.CancelledAt = sale.CancelledAt
		*sale = fresh

		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}

	return domain.ErrSaleVersionConflict
}

// emitLifecycleEvent ставит событие жизненного цикла в outbox.
// Публикация durable и fire-and-forget: оркестратор не ждёт консюмеров.
func (o *Orchestrator) emitLifecycleEvent(sale domain.Sale, eventType kafka.EventType) {
	event := kafka.NewSaleEvent(eventType, sale)
	payload, err := json.Marshal(event)
	if err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"sale_id": sale.ID,
			"event":   eventType,
		}).Error("marshal lifecycle event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "sale",
		AggregateID:   sale.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := o.outbox.Enqueue(msg); err != nil {
		o.logger.WithError(err).WithFields(log.Fields{
			"sale_id": sale.ID,
			"event":   eventType,
		}).Error("enqueue lifecycle event failed")
		return
	}
	if o.metrics != nil {
		o.metrics.RecordOutboxEvent()
	}
}

func (o *Orchestrator) rejected(err error) {
	if o.metrics != nil {
		o.metrics.RecordSaleRejected()
	}
	o.logger.WithError(err).Debug("sale request rejected")
}

// validateCreateInput проверяет вход до построения доменных объектов
// и возвращает типизированный результат вместо decorator-цепочек DTO.
func validateCreateInput(input CreateSaleInput) error {
	var fields []domain.FieldError

	if len(input.Items) == 0 {
		fields = append(fields, domain.FieldError{Field: "items", Message: "at least one item is required"})
	}
	if input.DiscountMinor < 0 {
		fields = append(fields, domain.FieldError{Field: "discount", Message: "discount must be non-negative"})
	}
	for i, item := range input.Items {
		if item.BookID == "" {
			fields = append(fields, domain.FieldError{Field: fmt.Sprintf("items[%d].book_id", i), Message: "book_id is required"})
		}
		if item.Qty <= 0 {
			fields = append(fields, domain.FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "quantity must be greater than zero"})
		}
		if item.DiscountMinor < 0 {
			fields = append(fields, domain.FieldError{Field: fmt.Sprintf("items[%d].discount", i), Message: "discount must be non-negative"})
		}
	}

	if len(fields) > 0 {
		return domain.NewValidationError(fields...)
	}
	return nil
}
