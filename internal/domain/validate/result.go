package validate

import (
	"github.com/kailas-cloud/semdex/internal/domain"
)

// Reason classifies a field-level problem.
type Reason string

// Validation reasons.
const (
	ReasonUnknownField    Reason = "unknown_field"
	ReasonMissingRequired Reason = "missing_required"
	ReasonInvalidValue    Reason = "invalid_value"
	ReasonMalformedValue  Reason = "malformed_value"
	ReasonDuplicateField  Reason = "duplicate_field"
	ReasonCustomField     Reason = "custom_field"
)

// FieldError describes one rejected (or warned about) field.
type FieldError struct {
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
	// Segment is the first path segment that did not resolve, Depth its 1-based position.
	Segment     string   `json:"segment,omitempty"`
	Depth       int      `json:"depth,omitempty"`
	Reason      Reason   `json:"reason"`
	Suggestions []string `json:"suggestions,omitempty"`
	Message     string   `json:"message"`
}

func (e FieldError) String() string { return e.Message }

// Result is the outcome of a validation call. It is a value, never an error.
type Result struct {
	Errors   []FieldError `json:"errors"`
	Warnings []FieldError `json:"warnings"`
}

// Valid reports whether no errors were found. Warnings do not affect validity.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Merge appends other's errors and warnings after r's.
func (r Result) Merge(other Result) Result {
	return Result{
		Errors:   append(append([]FieldError(nil), r.Errors...), other.Errors...),
		Warnings: append(append([]FieldError(nil), r.Warnings...), other.Warnings...),
	}
}

// ErrorFor returns the first error reported for field.
func (r Result) ErrorFor(field string) (FieldError, bool) {
	for _, e := range r.Errors {
		if e.Field == field {
			return e, true
		}
	}
	return FieldError{}, false
}

// Strict converts an invalid result into a *domain.ValidationError.
func Strict(r Result) error {
	if r.Valid() {
		return nil
	}
	return &domain.ValidationError{Errors: messages(r.Errors), Warnings: messages(r.Warnings)}
}

func messages(errs []FieldError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Message
	}
	return out
}
