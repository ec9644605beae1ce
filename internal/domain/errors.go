package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrDuplicateContent signals that identical text is already indexed.
	ErrDuplicateContent = errors.New("duplicate content")
	// ErrInvalidSchema signals a malformed schema definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrValidation signals a descriptor that violates its schema.
	ErrValidation = errors.New("validation failed")
	// ErrNormalization signals input that cannot be canonicalized.
	ErrNormalization = errors.New("normalization failed")
	// ErrQuery signals a malformed predicate or query.
	ErrQuery = errors.New("invalid query")
)

// SchemaError describes a malformed schema file or tree. Fatal at registry load.
type SchemaError struct {
	File  string
	Field string
	Line  int
	Msg   string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidSchema.Error())
	b.WriteString(": ")
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Msg)
	if e.File != "" {
		fmt.Fprintf(&b, " (in %s", e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// SchemaVersionError reports a schema file declaring a version other than the one it is loaded into.
type SchemaVersionError struct {
	Expected string
	Actual   string
	File     string
}

func (e *SchemaVersionError) Error() string {
	msg := fmt.Sprintf("%s: schema version mismatch: expected %q, but schema declares %q",
		ErrInvalidSchema.Error(), e.Expected, e.Actual)
	if e.File != "" {
		msg += " (in " + e.File + ")"
	}
	return msg
}

func (e *SchemaVersionError) Unwrap() error { return ErrInvalidSchema }

// NormalizationError reports a value that cannot be put into canonical form.
type NormalizationError struct {
	Field string
	Value string
	Msg   string
}

func (e *NormalizationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s (input %q)", ErrNormalization.Error(), e.Field, e.Msg, e.Value)
	}
	return fmt.Sprintf("%s: %s (input %q)", ErrNormalization.Error(), e.Msg, e.Value)
}

func (e *NormalizationError) Unwrap() error { return ErrNormalization }

// QueryError reports a predicate or query rejected at build time.
type QueryError struct {
	Field       string
	Value       string
	Msg         string
	Suggestions []string
}

func (e *QueryError) Error() string {
	var b strings.Builder
	b.WriteString(ErrQuery.Error())
	b.WriteString(": ")
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Msg)
	if e.Value != "" {
		fmt.Fprintf(&b, " (value %q)", e.Value)
	}
	if len(e.Suggestions) > 0 {
		b.WriteString("; did you mean: ")
		b.WriteString(strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

func (e *QueryError) Unwrap() error { return ErrQuery }

// ValidationError is the strict form of a failed validation result.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s with %d error(s)", ErrValidation.Error(), len(e.Errors))
	for _, msg := range e.Errors {
		b.WriteString("\n  • ")
		b.WriteString(msg)
	}
	if len(e.Warnings) > 0 {
		b.WriteString("\nwarnings:")
		for _, msg := range e.Warnings {
			b.WriteString("\n  • ")
			b.WriteString(msg)
		}
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
