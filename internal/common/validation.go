package common

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/statement-extractor/constants"
)

// ValidationError is one rejected request field.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationRule checks one value; nil means it passed.
type ValidationRule func(field string, value any) *ValidationError

// Validator accumulates failures so callers can report every bad field at once.
type Validator struct {
	errs []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs rules against value in order.
func (v *Validator) Field(field string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if verr := rule(field, value); verr != nil {
			v.errs = append(v.errs, *verr)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool { return len(v.errs) > 0 }

func (v *Validator) Errors() []ValidationError { return v.errs }

// Error wraps ErrValidation, or returns nil when every field passed.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

func (v *Validator) ErrorMessage() string {
	msgs := make([]string, len(v.errs))
	for i, e := range v.errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateAndReturnError turns collected failures into a gRPC InvalidArgument.
func ValidateAndReturnError(v *Validator) error {
	if !v.HasErrors() {
		return nil
	}
	return InvalidArgumentError(v.ErrorMessage())
}

// Required rejects nil, blank strings and empty byte slices.
func Required(field string, value any) *ValidationError {
	empty := value == nil
	switch x := value.(type) {
	case string:
		empty = strings.TrimSpace(x) == ""
	case []byte:
		empty = len(x) == 0
		value = fmt.Sprintf("%d bytes", len(x))
	}
	if empty {
		return &ValidationError{Field: field, Value: value, Message: "is required"}
	}
	return nil
}

// optionalString builds a rule accepting "" or any value ok approves.
func optionalString(ok func(string) bool, msg string) ValidationRule {
	return func(field string, value any) *ValidationError {
		s, isString := value.(string)
		if !isString {
			return &ValidationError{Field: field, Value: value, Message: "must be a string"}
		}
		if s == "" || ok(s) {
			return nil
		}
		return &ValidationError{Field: field, Value: value, Message: msg}
	}
}

var (
	OCRLanguage = optionalString(constants.IsOCRLanguage, "is not a supported OCR language")
	OCRQuality  = optionalString(constants.IsOCRQuality, "must be fast or best")
)

func NonNegative(field string, value any) *ValidationError {
	var f float64
	switch x := value.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	}
	if f < 0 {
		return &ValidationError{Field: field, Value: value, Message: "must not be negative"}
	}
	return nil
}

const mb = 1 << 20

// CheckDocumentSize rejects documents over maxSizeMB; zero disables the check.
func CheckDocumentSize(size int, maxSizeMB float64) error {
	if maxSizeMB <= 0 || float64(size) <= maxSizeMB*mb {
		return nil
	}
	return NewAppError(CodeTooLarge,
		fmt.Sprintf("document is %.1f MB, limit is %.1f MB", float64(size)/mb, maxSizeMB),
		ErrInvalidInput)
}
