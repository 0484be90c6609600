// Package currency отвечает за представление сумм в местной валюте.
package currency

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ExchangeRate — фиксированный курс: 55 быров за один доллар.
const ExchangeRate = 55

var printer = message.NewPrinter(language.English)

// ToDisplayCents переводит сумму из базовой валюты в быры.
// Преобразование только для отображения: хранимая сумма остаётся в базовой
// валюте, арифметика целочисленная в центах, без плавающей точки.
func ToDisplayCents(amountBaseCents int64) int64 {
	return amountBaseCents * ExchangeRate
}

// Format выводит сумму в центах как целые быры с разделителями тысяч,
// например "ETB 57,750".
func Format(displayCents int64) string {
	return printer.Sprintf("ETB %d", displayCents/100)
}

// FormatBase выводит сумму в базовой валюте, например "$1,050".
func FormatBase(amountBaseCents int64) string {
	return printer.Sprintf("$%d", amountBaseCents/100)
}
