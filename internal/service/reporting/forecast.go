package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// Trend классифицирует направление спроса.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendStable     Trend = "stable"
	TrendDecreasing Trend = "decreasing"
)

// forecastLookback — глубина дневного ряда для регрессии.
const forecastLookback = 90 * 24 * time.Hour

// forecastCacheTTL — срок жизни закэшированного прогноза.
const forecastCacheTTL = 15 * time.Minute

// trendSlopeThreshold — относительный наклон (к среднему дневному
// темпу), ниже которого спрос считается стабильным.
const trendSlopeThreshold = 0.05

// DemandForecast — прогноз спроса на книгу.
type DemandForecast struct {
	BookID          string    `json:"book_id"`
	DailyRate       float64   `json:"daily_rate"`
	Next7DaysUnits  int64     `json:"next_7_days_units"`
	Next30DaysUnits int64     `json:"next_30_days_units"`
	Trend           Trend     `json:"trend"`
	Confidence      float64   `json:"confidence"`
	CurrentStock    int32     `json:"current_stock"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// ReportCache — кэш готовых отчётов и прогнозов. Реализация может
// отсутствовать (nil-safe на стороне сервиса).
type ReportCache interface {
	// Get возвращает значение и признак попадания.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set сохраняет значение с TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service — read-only слой прогнозов и отчётов поверх накопленного
// состояния пайплайна. Собственного состояния, кроме кэша, не имеет.
type Service struct {
	sales     domain.SaleRepository
	inventory domain.InventoryRepository
	analytics domain.AnalyticsRepository
	audit     domain.AuditRepository
	cache     ReportCache
	logger    *log.Entry

	now func() time.Time
}

// NewService создаёт отчётный сервис. cache может быть nil.
func NewService(
	sales domain.SaleRepository,
	inventory domain.InventoryRepository,
	analytics domain.AnalyticsRepository,
	audit domain.AuditRepository,
	cache ReportCache,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "reporting")
	}
	return &Service{
		sales:     sales,
		inventory: inventory,
		analytics: analytics,
		audit:     audit,
		cache:     cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PredictDemand строит прогноз спроса по дневному ряду продаж книги:
// линейная регрессия методом наименьших квадратов, доверие — из
// коэффициента детерминации, ослабленного на коротких рядах.
// Ошибки кэша не фатальны: прогноз считается заново.
func (s *Service) PredictDemand(ctx context.Context, bookID string) (DemandForecast, error) {
	cacheKey := fmt.Sprintf("backoffice:forecast:%s", bookID)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		var forecast DemandForecast
		if err := json.Unmarshal(cached, &forecast); err == nil {
			return forecast, nil
		}
	}

	now := s.now()
	series, err := s.sales.DailySales(bookID, now.Add(-forecastLookback), now)
	if err != nil {
		return DemandForecast{}, fmt.Errorf("load daily sales for %s: %w", bookID, err)
	}

	stock := int32(0)
	if inv, err := s.inventory.Get(bookID); err == nil {
		stock = inv.CurrentStock
	} else if !errors.Is(err, domain.ErrInventoryNotFound) {
		return DemandForecast{}, fmt.Errorf("load inventory for %s: %w", bookID, err)
	}

	forecast := buildForecast(bookID, series, now)
	forecast.CurrentStock = stock

	s.cachePut(ctx, cacheKey, forecast)
	return forecast, nil
}

// buildForecast — чистая часть прогноза, без I/O.
func buildForecast(bookID string, series []domain.DailySales, now time.Time) DemandForecast {
	days := int(forecastLookback / (24 * time.Hour))
	values := fillDaily(series, now, days)

	slope, intercept, r2 := leastSquares(values)

	// Прогнозный дневной темп — значение регрессии на завтра,
	// отрицательные значения усечены.
	next := intercept + slope*float64(len(values))
	if next < 0 {
		next = 0
	}

	mean := meanOf(values)
	trend := TrendStable
	if mean > 0 {
		relative := slope / mean
		switch {
		case relative > trendSlopeThreshold:
			trend = TrendIncreasing
		case relative < -trendSlopeThreshold:
			trend = TrendDecreasing
		}
	}

	// Доверие: R² регрессии, ослабленный долей дней с продажами.
	// Ряд из нулей даёт нулевое доверие.
	confidence := clamp01(r2 * coverageOf(values))

	return DemandForecast{
		BookID:          bookID,
		DailyRate:       next,
		Next7DaysUnits:  int64(math.Round(next * 7)),
		Next30DaysUnits: int64(math.Round(next * 30)),
		Trend:           trend,
		Confidence:      confidence,
		GeneratedAt:     now,
	}
}

// fillDaily разворачивает разреженный дневной ряд в плотный массив
// длиной days, индекс 0 — самый старый день.
func fillDaily(series []domain.DailySales, now time.Time, days int) []float64 {
	values := make([]float64, days)
	startDay := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -(days - 1))
	for _, point := range series {
		day := point.Day.UTC().Truncate(24 * time.Hour)
		idx := int(day.Sub(startDay) / (24 * time.Hour))
		if idx >= 0 && idx < days {
			values[idx] += float64(point.Units)
		}
	}
	return values
}

// leastSquares возвращает наклон, свободный член и R² линейной
// регрессии y(i) по индексу дня i.
func leastSquares(values []float64) (slope, intercept, r2 float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, meanOf(values), 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, y := range values {
		fit := intercept + slope*float64(i)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, intercept, 0
	}
	return slope, intercept, clamp01(1 - ssRes/ssTot)
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coverageOf — доля дней с ненулевыми продажами.
func coverageOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var nonZero int
	for _, v := range values {
		if v > 0 {
			nonZero++
		}
	}
	return float64(nonZero) / float64(len(values))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	value, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("report cache read failed")
		return nil, false
	}
	return value, ok
}

func (s *Service) cachePut(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, forecastCacheTTL); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("report cache write failed")
	}
}
