package audit

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/metrics"
)

// Recorder пишет журнал аудита как побочный эффект основной операции.
// Контракт: ошибка записи аудита никогда не проваливает основную
// операцию, но проглатывание явное и наблюдаемое — warn-лог и счётчик,
// а не тихий discard.
type Recorder struct {
	repo    domain.AuditRepository
	logger  *log.Entry
	metrics *metrics.PipelineMetrics
}

// NewRecorder создаёт рекордер аудита.
func NewRecorder(repo domain.AuditRepository, logger *log.Entry, m *metrics.PipelineMetrics) *Recorder {
	if logger == nil {
		logger = log.WithField("component", "audit")
	}
	return &Recorder{repo: repo, logger: logger, metrics: m}
}

// Record добавляет запись аудита. Тип сущности объявляется в месте
// вызова статически, а не выводится из маршрута.
func (r *Recorder) Record(entityType domain.AuditEntityType, entityID, operation, actor, detail string) {
	if r == nil || r.repo == nil {
		return
	}

	record := domain.AuditRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  operation,
		Actor:      actor,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.repo.Append(record); err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
			"operation":   operation,
		}).Warn("audit record dropped")
		if r.metrics != nil {
			r.metrics.RecordAuditDropped()
		}
	}
}
