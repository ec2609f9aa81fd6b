package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
)

const (
	color    = "rgbcolor"
	language = "language"
	email    = "email"
	mx       = "max"
	mn       = "min"
	numeric  = "numeric"
	oneof    = "oneof"
	required = "required"
)

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	field := strings.Trim(err.Field, ".")
	if field == "" {
		return fmt.Sprintf("payload should be of type %s", err.Type)
	}
	return fmt.Sprintf("%q should be of type %s", field, err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case color:
		return fmt.Sprintf("%q should be a color name, #hex, or rgb()/rgba() value", field)
	case language:
		return fmt.Sprintf("%q should be a language tag like \"en\" or \"pt-BR\"", field)
	case email:
		return fmt.Sprintf("%q is not a valid email", field)
	case mx:
		return formatBound(field, "less", err)
	case mn:
		return formatBound(field, "greater", err)
	case numeric:
		return fmt.Sprintf("%q must contain only digits", field)
	case oneof:
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case required:
		return fmt.Sprintf("%q is required", field)
	default:
		return fmt.Sprintf("%q failed the %q check", field, err.Tag())
	}
}

// formatBound describes a min or max failure. Numbers are compared by value;
// strings and slices by length.
func formatBound(field, direction string, err validator.FieldError) string {
	//exhaustive:ignore
	switch err.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%q must be %s than or equal to %s", field, direction, err.Param())
	}

	unit := "character"
	if err.Kind() == reflect.Slice || err.Kind() == reflect.Map {
		unit = "element"
	}
	if err.Param() != "1" {
		unit += "s"
	}
	return fmt.Sprintf("%q length must be %s than or equal to %s %s", field, direction, err.Param(), unit)
}
