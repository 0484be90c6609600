// Package pricing реализует расчёт стоимости и баллов за бронирование.
package pricing

import (
	"time"

	"github.com/kuriftu/rewards-system/internal/model"
)

const dateLayout = "2006-01-02"

// CategoryPolicy задаёт правила расчёта для категории каталога.
type CategoryPolicy struct {
	// UsesDateRange истинно, если количество единиц определяется диапазоном дат,
	// а не числом гостей.
	UsesDateRange bool
	// MaxGuests — верхняя граница числа гостей для категории.
	MaxGuests int
	// GuestLabel — подпись поля количества гостей в форме бронирования.
	GuestLabel string
}

// policies — таблица правил по категориям вместо разбросанных условий по типу позиции.
var policies = map[model.Category]CategoryPolicy{
	model.CategoryRoom:     {UsesDateRange: true, MaxGuests: 4, GuestLabel: "Guests"},
	model.CategorySpa:      {UsesDateRange: false, MaxGuests: 10, GuestLabel: "People"},
	model.CategoryActivity: {UsesDateRange: false, MaxGuests: 10, GuestLabel: "People"},
	model.CategoryDining:   {UsesDateRange: false, MaxGuests: 20, GuestLabel: "Guests"},
}

// PolicyFor возвращает правила расчёта для категории.
func PolicyFor(category model.Category) CategoryPolicy {
	if p, ok := policies[category]; ok {
		return p
	}
	// Неизвестная категория считается как разовая услуга на гостей.
	return CategoryPolicy{MaxGuests: 10, GuestLabel: "Guests"}
}

// Calculator выполняет расчёт стоимости и баллов. Расчёт чистый: один и тот же
// выбор всегда даёт один и тот же результат, поэтому он перезапускается при
// каждом изменении дат или числа гостей.
type Calculator struct{}

// NewCalculator создаёт новый калькулятор бронирований.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute вычисляет итоговую стоимость и баллы для позиции каталога и выбора
// пользователя. Для номеров единица расчёта — ночь, для остальных категорий — гость.
func (c *Calculator) Compute(item model.CatalogItem, sel model.BookingSelection) model.BookingResult {
	policy := PolicyFor(item.Category)

	var quantity int64
	if policy.UsesDateRange {
		quantity = Nights(sel.CheckIn, sel.CheckOut)
	} else {
		maxGuests := policy.MaxGuests
		if item.MaxGuests > 0 {
			maxGuests = item.MaxGuests
		}
		quantity = int64(ClampGuests(sel.GuestCount, maxGuests))
	}

	return model.BookingResult{
		TotalAmountCents: item.BasePriceCents * quantity,
		PointsEarned:     item.BasePoints * quantity,
		Quantity:         quantity,
	}
}

// Nights возвращает количество ночей между датами заезда и выезда.
// Отсутствующие, некорректные или перевёрнутые даты дают минимум в одну ночь:
// расчёт запускается на каждое изменение полей формы и не должен падать на
// недозаполненном вводе.
func Nights(checkIn, checkOut string) int64 {
	in, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return 1
	}
	out, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return 1
	}

	days := int64(out.Sub(in).Hours() / 24)
	if out.Sub(in)%(24*time.Hour) != 0 {
		days++
	}
	if days < 1 {
		return 1
	}
	return days
}

// ClampGuests приводит число гостей к допустимому диапазону [1, max].
func ClampGuests(guests, max int) int {
	if guests < 1 {
		return 1
	}
	if max > 0 && guests > max {
		return max
	}
	return guests
}

// ParseDate разбирает дату формы бронирования. Используется на границе HTTP,
// где некорректная дата уже является ошибкой, а не поводом для дефолта.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}
