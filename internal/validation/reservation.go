// Package validation содержит проверку входных данных форм бронирования.
package validation

import (
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// phoneRe повторяет правило формы: необязательный плюс и не менее десяти
// цифр, пробелов или дефисов.
var phoneRe = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Ошибка регистрации кастомного правила возможна только при пустом имени.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})

	return v
}

// DiningReservation — данные формы бронирования столика.
type DiningReservation struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,phone"`
	Restaurant      string `json:"restaurant" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required"`
	Guests          int    `json:"guests" validate:"required,min=1,max=20"`
	SpecialRequests string `json:"special_requests"`
}

// reservationMessages — сообщения об ошибках по полям, как их показывает форма.
var reservationMessages = map[string]string{
	"Name":       "Name is required",
	"Email":      "Please enter a valid email address",
	"Phone":      "Please enter a valid phone number",
	"Restaurant": "Restaurant is required",
	"Date":       "Date is required",
	"Time":       "Time is required",
	"Guests":     "At least 1 guest is required",
}

// maxAdvance ограничивает бронирование тремя месяцами вперёд.
const maxAdvanceMonths = 3

// ValidateDiningReservation проверяет форму и возвращает ошибки по полям.
// Ошибки формы локальны: они отображаются рядом с полями и не прерывают работу.
func ValidateDiningReservation(r DiningReservation, now time.Time) map[string]string {
	errs := make(map[string]string)

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			errs["form"] = "invalid reservation payload"
			return errs
		}
		for _, fe := range fieldErrs {
			if msg, ok := reservationMessages[fe.Field()]; ok {
				errs[fe.Field()] = msg
			} else {
				errs[fe.Field()] = "Invalid value"
			}
		}
	}

	if _, ok := errs["Date"]; !ok && r.Date != "" {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			errs["Date"] = "Date is required"
			return errs
		}

		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if date.Before(today) {
			errs["Date"] = "Date cannot be in the past"
		} else if date.After(today.AddDate(0, maxAdvanceMonths, 0)) {
			errs["Date"] = "Reservations are accepted up to 3 months in advance"
		}
	}

	return errs
}
