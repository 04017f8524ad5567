package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

var (
	// custom validation tags & texts
	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	PositiveNumberTag  = "gt0"
	positiveNumberText = "must be a number greater than 0"
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(PositiveNumberTag, positiveNumberValidation)
	RegisterCustomTranslation(validate, translator, PositiveNumberTag, positiveNumberText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ParseNumber parses a form input as a decimal number. Blank or malformed input is not a number.
func ParseNumber(s string) (decimal.Decimal, bool) {
	s = CleanString(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// IsPositiveNumber reports whether `s` is numeric and > 0.
func IsPositiveNumber(s string) bool {
	d, ok := ParseNumber(s)
	return ok && d.IsPositive()
}

// Custom Global Validators

// positiveNumberValidation only allows strings holding a number greater than 0.
func positiveNumberValidation(fl validator.FieldLevel) bool {
	return IsPositiveNumber(fl.Field().String())
}
