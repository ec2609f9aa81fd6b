package binder

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	languageRE = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)
	colorRE    = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|rgba?\([0-9.,%\s]+\))$`)
)

// languageValidator accepts simple BCP 47 tags such as "en" or "pt-BR". The
// empty string is allowed so the field can be cleared.
func languageValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return languageRE.MatchString(value)
}

// colorValidator accepts CSS named colors, hex colors, and rgb()/rgba()
// values, which is what the readers send for highlight colors.
func colorValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return colorRE.MatchString(value)
}
