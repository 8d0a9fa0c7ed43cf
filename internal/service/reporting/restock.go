package reporting

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Urgency — срочность пополнения остатка.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Пороги срочности в днях до исчерпания остатка.
const (
	depletionCriticalDays = 7
	depletionHighDays     = 14
	depletionMediumDays   = 30
)

// RestockRecommendation — рекомендация пополнения одной книги.
type RestockRecommendation struct {
	BookID         string  `json:"book_id"`
	CurrentStock   int32   `json:"current_stock"`
	MinStock       int32   `json:"min_stock"`
	MaxStock       int32   `json:"max_stock"`
	RecommendedQty int32   `json:"recommended_qty"`
	Urgency        Urgency `json:"urgency"`
	// DepletionDays — оценка дней до исчерпания при прогнозном темпе;
	// 0, если остатка уже нет, отрицательных значений не бывает.
	DepletionDays int32   `json:"depletion_days"`
	DailyRate     float64 `json:"daily_rate"`
}

// RestockRecommendations сканирует записи с остатком ниже минимального
// порога и для каждой считает объём дозаказа и срочность. Срочность
// определяется худшим из двух сигналов: относительной просадкой к
// minStock и прогнозной скоростью исчерпания.
func (s *Service) RestockRecommendations(ctx context.Context) ([]RestockRecommendation, error) {
	records, err := s.inventory.ListBelowMin()
	if err != nil {
		return nil, fmt.Errorf("list inventory below min: %w", err)
	}

	now := s.now()
	result := make([]RestockRecommendation, 0, len(records))
	for _, record := range records {
		series, err := s.sales.DailySales(record.BookID, now.Add(-forecastLookback), now)
		if err != nil {
			return nil, fmt.Errorf("load daily sales for %s: %w", record.BookID, err)
		}
		forecast := buildForecast(record.BookID, series, now)

		rec := RestockRecommendation{
			BookID:         record.BookID,
			CurrentStock:   record.CurrentStock,
			MinStock:       record.MinStock,
			MaxStock:       record.MaxStock,
			RecommendedQty: recommendedQty(record.CurrentStock, record.MinStock, record.MaxStock),
			DailyRate:      forecast.DailyRate,
			DepletionDays:  depletionDays(record.CurrentStock, forecast.DailyRate),
		}
		rec.Urgency = urgencyOf(rec)
		result = append(result, rec)
	}

	sort.Slice(result, func(i, j int) bool {
		ri, rj := urgencyRank(result[i].Urgency), urgencyRank(result[j].Urgency)
		if ri != rj {
			return ri > rj
		}
		return result[i].BookID < result[j].BookID
	})

	return result, nil
}

// recommendedQty — дозаказ до maxStock; без заданного максимума —
// до двойного минимального порога.
func recommendedQty(current, minStock, maxStock int32) int32 {
	target := maxStock
	if target <= 0 {
		target = minStock * 2
	}
	if target <= current {
		return 0
	}
	return target - current
}

// depletionDays переводит прогнозный дневной темп в дни до нуля.
// Без темпа продаж исчерпание не прогнозируется.
func depletionDays(current int32, dailyRate float64) int32 {
	if current <= 0 {
		return 0
	}
	if dailyRate <= 0 {
		return math.MaxInt32
	}
	return int32(math.Ceil(float64(current) / dailyRate))
}

func urgencyOf(rec RestockRecommendation) Urgency {
	if rec.CurrentStock <= 0 || rec.DepletionDays <= depletionCriticalDays {
		return UrgencyCritical
	}

	ratio := 1.0
	if rec.MinStock > 0 {
		ratio = float64(rec.CurrentStock) / float64(rec.MinStock)
	}
	switch {
	case ratio <= 0.25 || rec.DepletionDays <= depletionHighDays:
		return UrgencyHigh
	case ratio <= 0.5 || rec.DepletionDays <= depletionMediumDays:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

func urgencyRank(u Urgency) int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	default:
		return 0
	}
}
