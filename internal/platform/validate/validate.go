// Package validate runs struct tag validation with english messages keyed by json names
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"

	perr "pulseboard/internal/platform/errors"
)

type engine struct {
	v     *validator.Validate
	trans ut.Translator
}

var get = sync.OnceValue(func() *engine {
	loc := en.New()
	trans, _ := ut.New(loc, loc).GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = entrans.RegisterDefaultTranslations(v, trans)

	// the default min and max texts spell out units per kind
	short(v, trans, "min", "{0} must be at least {1}")
	short(v, trans, "max", "{0} must be at most {1}")
	short(v, trans, "required_with", "{0} is required together with {1}")
	return &engine{v: v, trans: trans}
})

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func short(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// Struct validates v; a failure is a validation error naming the first offending field
func Struct(v any) error {
	err := get().v.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "validate")
	}
	field, msg := first(err)
	return perr.WithField(perr.New(perr.ErrorCodeValidation, msg), field)
}

// Message returns the human readable part of a Struct failure
func Message(err error) string {
	if e, ok := perr.As(err); ok {
		return perr.WireFrom(e).Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func first(err error) (field, msg string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field(), verrs[0].Translate(get().trans)
	}
	return "", err.Error()
}
