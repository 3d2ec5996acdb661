// Package validator checks request payloads and reports failures as apperrors.ValidationErrors.
package validator

import (
	"reflect"
	"strings"

	"github.com/bandup/session-service/internal/catalog"
	apperrors "github.com/bandup/session-service/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// ValidationErrors is re-exported so handlers only need this package.
type ValidationErrors = apperrors.ValidationErrors

// Validator wraps the struct validator with session-specific rules registered.
type Validator struct {
	structValidator *validator.Validate
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)
	return &Validator{structValidator: structValidator}
}

// Validate validates struct tags and converts failures into ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("session_mode", func(fl validator.FieldLevel) bool {
		return catalog.Mode(fl.Field().String()).Valid()
	})
	validate.RegisterValidation("notblank", validators.NotBlank)

	// report json names rather than Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
