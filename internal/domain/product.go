package domain

// Product — книга из внешнего каталога. Каталог принадлежит
// соседнему сервису; для пайплайна расчётов продукт read-only.
type Product struct {
	ID         string
	Title      string
	PriceMinor int64
	Active     bool
}
