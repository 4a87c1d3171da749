package core

// validation.go turns raw payloads into submissions and checks them in the
// order operators are told about problems: required fields, factory,
// ownership, date, machines. The first failure is returned.

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/JonMunkholm/machinelog/internal/schema"
	"github.com/go-playground/validator/v10"
)

// ValidationError is a user-correctable problem with a submission. Message is
// shown to the operator as is.
type ValidationError struct {
	Field   string // offending field, json name
	Value   string // offending value, if any
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// utf8BOM is prepended by some Windows editors to exported files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses a JSON payload. The bytes are kept on the submission for the
// log. Malformed JSON is a ValidationError.
func Decode(raw []byte) (*Submission, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, ValidationError{
			Field:   "payload",
			Message: "invalid JSON payload: " + err.Error(),
		}
	}
	sub.Raw = append(json.RawMessage(nil), raw...)
	return &sub, nil
}

// Validator checks submissions against a schema.
type Validator struct {
	schema   *schema.Schema
	validate *validator.Validate
}

// NewValidator builds a validator for sc.
func NewValidator(sc *schema.Schema) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{schema: sc, validate: v}
}

// Validate returns the first problem with sub, or nil.
func (v *Validator) Validate(sub *Submission) error {
	if sub == nil {
		return missingFields(nil)
	}

	if err := v.validate.Struct(sub); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate submission: %w", err)
		}
		names := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			names = append(names, fe.Field())
		}
		return missingFields(names)
	}

	if !v.schema.IsFactory(sub.Factory) {
		return ValidationError{
			Field: "factory",
			Value: sub.Factory,
			Message: fmt.Sprintf("invalid factory: %s. Must be one of: %s",
				sub.Factory, strings.Join(v.schema.Factories(), ", ")),
		}
	}

	if !v.schema.IsOwnership(sub.Ownership) {
		return ValidationError{
			Field:   "ownership",
			Value:   sub.Ownership,
			Message: fmt.Sprintf(`invalid ownership type: %s. Must be "Owned" or "Rent"`, sub.Ownership),
		}
	}

	if err := v.validate.Var(sub.Date, "datetime="+schema.DateLayout); err != nil {
		return ValidationError{
			Field:   "date",
			Value:   sub.Date,
			Message: "invalid date format. Expected YYYY-MM-DD, got: " + sub.Date,
		}
	}

	if len(sub.Machines) == 0 {
		return ValidationError{
			Field:   "machines",
			Message: "no machine data provided",
		}
	}

	return nil
}

func missingFields(names []string) ValidationError {
	return ValidationError{
		Field:   "required",
		Value:   strings.Join(names, ","),
		Message: "missing required fields: date, factory, and ownership are required",
	}
}
