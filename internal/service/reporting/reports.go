package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/bookstore-backoffice/internal/domain"
)

// ABCClass — класс книги в ABC-анализе по доле выручки.
type ABCClass string

const (
	ABCClassA ABCClass = "A"
	ABCClassB ABCClass = "B"
	ABCClassC ABCClass = "C"
)

// Границы кумулятивной доли выручки для классов A и B.
const (
	abcClassAShare = 0.80
	abcClassBShare = 0.95
)

// ABCEntry — строка ABC-анализа.
type ABCEntry struct {
	BookID          string   `json:"book_id"`
	UnitsSold       int64    `json:"units_sold"`
	RevenueMinor    int64    `json:"revenue_minor"`
	RevenueShare    float64  `json:"revenue_share"`
	CumulativeShare float64  `json:"cumulative_share"`
	Class           ABCClass `json:"class"`
}

// ABCReport — ABC-анализ продаж за период.
type ABCReport struct {
	From              time.Time  `json:"from"`
	To                time.Time  `json:"to"`
	TotalRevenueMinor int64      `json:"total_revenue_minor"`
	Entries           []ABCEntry `json:"entries"`
}

// GenerateABCAnalysis классифицирует книги по вкладу в выручку
// завершённых продаж за период: A — первые 80% кумулятивной выручки,
// B — следующие 15%, C — остальное.
func (s *Service) GenerateABCAnalysis(ctx context.Context, from, to time.Time) (ABCReport, error) {
	byBook, err := s.aggregateSales(from, to)
	if err != nil {
		return ABCReport{}, err
	}

	entries := make([]ABCEntry, 0, len(byBook))
	var total int64
	for bookID, agg := range byBook {
		entries = append(entries, ABCEntry{
			BookID:       bookID,
			UnitsSold:    agg.units,
			RevenueMinor: agg.revenueMinor,
		})
		total += agg.revenueMinor
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RevenueMinor != entries[j].RevenueMinor {
			return entries[i].RevenueMinor > entries[j].RevenueMinor
		}
		return entries[i].BookID < entries[j].BookID
	})

	var cumulative int64
	for i := range entries {
		cumulative += entries[i].RevenueMinor
		if total > 0 {
			entries[i].RevenueShare = float64(entries[i].RevenueMinor) / float64(total)
			entries[i].CumulativeShare = float64(cumulative) / float64(total)
		}
		switch {
		case entries[i].CumulativeShare <= abcClassAShare:
			entries[i].Class = ABCClassA
		case entries[i].CumulativeShare <= abcClassBShare:
			entries[i].Class = ABCClassB
		default:
			entries[i].Class = ABCClassC
		}
	}

	return ABCReport{
		From:              from,
		To:                to,
		TotalRevenueMinor: total,
		Entries:           entries,
	}, nil
}

// ProfitabilityEntry — строка отчёта доходности по книге.
type ProfitabilityEntry struct {
	BookID            string `json:"book_id"`
	UnitsSold         int64  `json:"units_sold"`
	GrossMinor        int64  `json:"gross_minor"`
	DiscountMinor     int64  `json:"discount_minor"`
	NetMinor          int64  `json:"net_minor"`
	AvgUnitPriceMinor int64  `json:"avg_unit_price_minor"`
}

// ProfitabilityReport — доходность продаж за период.
type ProfitabilityReport struct {
	From            time.Time            `json:"from"`
	To              time.Time            `json:"to"`
	SalesCount      int                  `json:"sales_count"`
	GrossMinor      int64                `json:"gross_minor"`
	DiscountMinor   int64                `json:"discount_minor"`
	TaxMinor        int64                `json:"tax_minor"`
	NetRevenueMinor int64                `json:"net_revenue_minor"`
	Entries         []ProfitabilityEntry `json:"entries"`
}

// GenerateProfitabilityReport считает валовую выручку, скидки и налог
// по завершённым продажам за период, с разбивкой по книгам.
func (s *Service) GenerateProfitabilityReport(ctx context.Context, from, to time.Time) (ProfitabilityReport, error) {
	sales, err := s.sales.ListCompletedBetween(from, to)
	if err != nil {
		return ProfitabilityReport{}, fmt.Errorf("list completed sales: %w", err)
	}

	report := ProfitabilityReport{From: from, To: to, SalesCount: len(sales)}
	perBook := make(map[string]*ProfitabilityEntry)
	for _, sale := range sales {
		report.GrossMinor += sale.SubtotalMinor
		report.DiscountMinor += sale.DiscountMinor
		report.TaxMinor += sale.TaxMinor
		report.NetRevenueMinor += sale.TotalMinor

		for _, item := range sale.Items {
			entry, ok := perBook[item.BookID]
			if !ok {
				entry = &ProfitabilityEntry{BookID: item.BookID}
				perBook[item.BookID] = entry
			}
			entry.UnitsSold += int64(item.Qty)
			entry.GrossMinor += int64(item.Qty) * item.UnitPriceMinor
			entry.DiscountMinor += item.DiscountMinor
			entry.NetMinor += item.SubtotalMinor
		}
	}

	report.Entries = make([]ProfitabilityEntry, 0, len(perBook))
	for _, entry := range perBook {
		if entry.UnitsSold > 0 {
			entry.AvgUnitPriceMinor = entry.NetMinor / entry.UnitsSold
		}
		report.Entries = append(report.Entries, *entry)
	}
	sort.Slice(report.Entries, func(i, j int) bool {
		if report.Entries[i].NetMinor != report.Entries[j].NetMinor {
			return report.Entries[i].NetMinor > report.Entries[j].NetMinor
		}
		return report.Entries[i].BookID < report.Entries[j].BookID
	})

	return report, nil
}

// SeasonalityReport — распределение проданных единиц по дням недели
// и месяцам за период.
type SeasonalityReport struct {
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	TotalUnits int64            `json:"total_units"`
	ByWeekday  map[string]int64 `json:"by_weekday"`
	ByMonth    map[string]int64 `json:"by_month"`
	PeakDay    string           `json:"peak_day"`
	PeakMonth  string           `json:"peak_month"`
}

// GenerateSeasonalityReport раскладывает завершённые продажи по дням
// недели и месяцам; дата продажи берётся по моменту завершения.
func (s *Service) GenerateSeasonalityReport(ctx context.Context, from, to time.Time) (SeasonalityReport, error) {
	sales, err := s.sales.ListCompletedBetween(from, to)
	if err != nil {
		return SeasonalityReport{}, fmt.Errorf("list completed sales: %w", err)
	}

	report := SeasonalityReport{
		From:      from,
		To:        to,
		ByWeekday: make(map[string]int64),
		ByMonth:   make(map[string]int64),
	}
	for _, sale := range sales {
		when := sale.CreatedAt
		if sale.CompletedAt != nil {
			when = *sale.CompletedAt
		}
		var units int64
		for _, item := range sale.Items {
			units += int64(item.Qty)
		}
		report.TotalUnits += units
		report.ByWeekday[when.UTC().Weekday().String()] += units
		report.ByMonth[when.UTC().Month().String()] += units
	}

	report.PeakDay = peakKey(report.ByWeekday)
	report.PeakMonth = peakKey(report.ByMonth)
	return report, nil
}

// RotationClass — классификация книги по скорости оборота.
type RotationClass string

const (
	RotationFast   RotationClass = "fast"
	RotationNormal RotationClass = "normal"
	RotationSlow   RotationClass = "slow"
	RotationDead   RotationClass = "dead"
)

// RotationEntry — строка отчёта оборачиваемости.
type RotationEntry struct {
	BookID       string        `json:"book_id"`
	CurrentStock int32         `json:"current_stock"`
	RotationRate float64       `json:"rotation_rate"`
	DaysToSell   int32         `json:"days_to_sell"`
	Class        RotationClass `json:"class"`
}

// StockRotationReport — оборачиваемость остатков по всем книгам
// с накопленной аналитикой.
type StockRotationReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Entries     []RotationEntry `json:"entries"`
}

// GenerateStockRotationReport строит отчёт оборачиваемости из
// накопленной аналитики: fast — от 6 оборотов в год, normal — от 2,
// slow — хоть какой-то оборот, dead — продаж нет.
func (s *Service) GenerateStockRotationReport(ctx context.Context) (StockRotationReport, error) {
	records, err := s.analytics.List()
	if err != nil {
		return StockRotationReport{}, fmt.Errorf("list analytics: %w", err)
	}

	report := StockRotationReport{GeneratedAt: s.now()}
	report.Entries = make([]RotationEntry, 0, len(records))
	for _, record := range records {
		entry := RotationEntry{
			BookID:       record.BookID,
			RotationRate: record.RotationRate,
			DaysToSell:   record.DaysToSell,
		}
		if inv, err := s.inventory.Get(record.BookID); err == nil {
			entry.CurrentStock = inv.CurrentStock
		}
		switch {
		case record.RotationRate >= 6:
			entry.Class = RotationFast
		case record.RotationRate >= 2:
			entry.Class = RotationNormal
		case record.RotationRate > 0:
			entry.Class = RotationSlow
		default:
			entry.Class = RotationDead
		}
		report.Entries = append(report.Entries, entry)
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		if report.Entries[i].RotationRate != report.Entries[j].RotationRate {
			return report.Entries[i].RotationRate > report.Entries[j].RotationRate
		}
		return report.Entries[i].BookID < report.Entries[j].BookID
	})
	return report, nil
}

// GenerateAuditTrail возвращает журнал аудита за период в порядке записи.
func (s *Service) GenerateAuditTrail(ctx context.Context, from, to time.Time) ([]domain.AuditRecord, error) {
	records, err := s.audit.ListBetween(from, to)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

type salesAggregate struct {
	units        int64
	revenueMinor int64
}

func (s *Service) aggregateSales(from, to time.Time) (map[string]salesAggregate, error) {
	sales, err := s.sales.ListCompletedBetween(from, to)
	if err != nil {
		return nil, fmt.Errorf("list completed sales: %w", err)
	}

	byBook := make(map[string]salesAggregate)
	for _, sale := range sales {
		for _, item := range sale.Items {
			agg := byBook[item.BookID]
			agg.units += int64(item.Qty)
			agg.revenueMinor += item.SubtotalMinor
			byBook[item.BookID] = agg
		}
	}
	return byBook, nil
}

func peakKey(m map[string]int64) string {
	var best string
	var bestUnits int64 = -1
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if m[k] > bestUnits {
			best, bestUnits = k, m[k]
		}
	}
	return best
}
