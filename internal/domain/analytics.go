package domain

import "time"

// DaysToSellNoSignal — сигнальное значение "нет признаков скорого
// исчерпания остатка" при отсутствии продаж за последние 30 дней.
const DaysToSellNoSignal = 999

// BookAnalytics хранит накопительную статистику продаж одной книги.
//
// Оконные счётчики SalesLast7/30/90Days только накапливаются: вклад
// попадает в окно по дате продажи на момент обработки события и позже
// не вычитается. Это сознательно сохранённое поведение исходной
// системы, а не ошибка: на длинных интервалах счётчики дрейфуют вверх.
type BookAnalytics struct {
	BookID            string
	TotalUnitsSold    int64
	TotalRevenueMinor int64
	SalesLast7Days    int64
	SalesLast30Days   int64
	SalesLast90Days   int64
	FirstSaleDate     *time.Time
	LastSaleDate      *time.Time
	// RotationRate — годовая оборачиваемость остатка (обороты в год).
	RotationRate float64
	// DaysToSell — оценка дней до исчерпания остатка при текущем темпе.
	DaysToSell int32
	UpdatedAt  time.Time
}

// DailySales — агрегат продаж одной книги за один календарный день.
// Используется прогнозным слоем как временной ряд.
type DailySales struct {
	BookID string
	Day    time.Time
	Units  int64
}
