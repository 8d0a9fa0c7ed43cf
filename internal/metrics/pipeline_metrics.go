package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics содержит метрики пайплайна расчёта продаж.
type PipelineMetrics struct {
	// Счётчики жизненного цикла продаж
	salesCreated   prometheus.Counter
	salesCompleted prometheus.Counter
	salesCancelled prometheus.Counter
	salesRejected  prometheus.Counter

	// Счётчики консюмеров
	eventsConsumed  *prometheus.CounterVec
	duplicateEvents *prometheus.CounterVec
	consistencyWarn prometheus.Counter

	// Outbox и аудит
	outboxEvents prometheus.Counter
	auditDropped prometheus.Counter

	// Гистограммы времени выполнения
	createSaleDuration prometheus.Histogram
	consumerDuration   *prometheus.HistogramVec
}

// NewPipelineMetrics создаёт новый экземпляр метрик пайплайна.
func NewPipelineMetrics() *PipelineMetrics {
	return newPipelineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPipelineMetricsWithRegisterer(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PipelineMetrics{
		salesCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bko_sales_created_total",
			Help: "Total number of sales created",
		}),
		salesCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bko_sales_completed_total",
			Help: "Total number of sales completed",
		}),
		salesCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bko_sales_cancelled_total",
			Help: "Total number of sales cancelled",
		}),
		salesRejected: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bko_sales_rejected_total",
			Help: "Total number of sale requests rejected by validation",
		}),
		eventsConsumed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "bko_events_consumed_total",
			Help: "Total number of sale events applied grouped by consumer and event type",
		}, []string{"consumer", "event_type"}),
		duplicateEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "bko_duplicate_events_skipped_total",
			Help: "Total number of redelivered events skipped by the dedupe check",
		}, []string{"consumer"}),
		consistencyWarn: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bko_consistency_warnings_total",
			Help: "Total number of non-fatal consistency issues observed by consumers",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bko_outbox_events_total",
			Help: "Total number of lifecycle events enqueued to the outbox",
		}),
		auditDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "bko_audit_records_dropped_total",
			Help: "Total number of audit records dropped without failing the primary operation",
		}),
		createSaleDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "bko_create_sale_duration_seconds",
			Help:    "Duration of CreateSale operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		consumerDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "bko_consumer_event_duration_seconds",
			Help:    "Duration of consumer event processing in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"consumer"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordSaleCreated увеличивает счётчик созданных продаж.
func (m *PipelineMetrics) RecordSaleCreated() {
	m.salesCreated.Inc()
}

// RecordSaleCompleted увеличивает счётчик завершённых продаж.
func (m *PipelineMetrics) RecordSaleCompleted() {
	m.salesCompleted.Inc()
}

// RecordSaleCancelled увеличивает счётчик отменённых продаж.
func (m *PipelineMetrics) RecordSaleCancelled() {
	m.salesCancelled.Inc()
}

// RecordSaleRejected увеличивает счётчик отклонённых валидацией запросов.
func (m *PipelineMetrics) RecordSaleRejected() {
	m.salesRejected.Inc()
}

// RecordEventConsumed отмечает применённое консюмером событие.
func (m *PipelineMetrics) RecordEventConsumed(consumer, eventType string) {
	m.eventsConsumed.WithLabelValues(consumer, eventType).Inc()
}

// RecordDuplicateSkipped отмечает повторную доставку, отброшенную dedupe-проверкой.
func (m *PipelineMetrics) RecordDuplicateSkipped(consumer string) {
	m.duplicateEvents.WithLabelValues(consumer).Inc()
}

// RecordConsistencyWarning отмечает нефатальную проблему консистентности.
func (m *PipelineMetrics) RecordConsistencyWarning() {
	m.consistencyWarn.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *PipelineMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordAuditDropped отмечает потерянную запись аудита.
func (m *PipelineMetrics) RecordAuditDropped() {
	m.auditDropped.Inc()
}

// RecordCreateSaleDuration записывает время выполнения CreateSale.
func (m *PipelineMetrics) RecordCreateSaleDuration(duration time.Duration) {
	m.createSaleDuration.Observe(duration.Seconds())
}

// RecordConsumerDuration записывает время обработки события консюмером.
func (m *PipelineMetrics) RecordConsumerDuration(consumer string, duration time.Duration) {
	m.consumerDuration.WithLabelValues(consumer).Observe(duration.Seconds())
}
