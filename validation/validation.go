package validation

import (
	"net/mail"
	"strings"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func NonNegative(field string, val float64, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func NonNegativeInt(field string, val int, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

// OneOf flags value when it is not one of allowed.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}

// Email accepts an empty value; use Required alongside when the field is mandatory.
func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v[field] = "invalid_email"
	}
}
