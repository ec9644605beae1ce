// Package validate checks values and descriptors against one schema version.
//
// Validation is pure: results are values, the schema and descriptor are never
// touched, and repeated calls give identical results.
package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
)

// Validator is bound to one schema version. Safe for concurrent use.
type Validator struct {
	version *schema.Version
}

// New creates a Validator for v.
func New(v *schema.Version) *Validator {
	return &Validator{version: v}
}

// Version returns the bound schema version.
func (v *Validator) Version() *schema.Version { return v.version }

// ValidateValue checks a single raw value for field.
func (v *Validator) ValidateValue(field, value string) Result {
	name := normalize.FieldName(field)
	f, ok := v.version.Field(name)
	if !ok {
		return Result{Errors: []FieldError{v.unknownField(name, value)}}
	}
	if fe, bad := checkValue(f, value); bad {
		return Result{Errors: []FieldError{fe}}
	}
	return Result{}
}

// ValidateDescriptor checks every field of d. Partial validation only looks at the
// fields present; complete validation also reports each absent required field.
// Fields unknown to the schema are warnings.
func (v *Validator) ValidateDescriptor(d descriptor.Descriptor, partial bool) Result {
	return v.validate(d.Fields(), partial)
}

// ValidateDescriptorStrict is ValidateDescriptor turned into an error.
func (v *Validator) ValidateDescriptorStrict(d descriptor.Descriptor, partial bool) error {
	return Strict(v.ValidateDescriptor(d, partial))
}

// ValidateFields validates a raw field map before a descriptor exists.
// Names are normalized; blank values count as absent.
func (v *Validator) ValidateFields(raw map[string]string, partial bool) Result {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var res Result
	fields := make(map[string]string, len(raw))
	origin := make(map[string]string, len(raw))
	for _, k := range keys {
		name := normalize.FieldName(k)
		if prev, dup := origin[name]; dup {
			res.Errors = append(res.Errors, FieldError{
				Field:   name,
				Value:   raw[k],
				Reason:  ReasonDuplicateField,
				Message: fmt.Sprintf("%s: %q and %q normalize to the same field name", name, prev, k),
			})
			continue
		}
		origin[name] = k
		if strings.TrimSpace(raw[k]) == "" {
			continue
		}
		fields[name] = raw[k]
	}
	return res.Merge(v.validate(fields, partial))
}

// ValidateFieldsStrict is ValidateFields turned into an error.
func (v *Validator) ValidateFieldsStrict(raw map[string]string, partial bool) error {
	return Strict(v.ValidateFields(raw, partial))
}

func (v *Validator) validate(fields map[string]string, partial bool) Result {
	names := v.version.Fields()
	for name := range fields {
		if !v.version.HasField(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	var res Result
	for _, name := range names {
		value, present := fields[name]
		f, declared := v.version.Field(name)
		switch {
		case !declared:
			res.Warnings = append(res.Warnings, FieldError{
				Field:   name,
				Value:   value,
				Reason:  ReasonCustomField,
				Message: fmt.Sprintf("%s: not declared in schema %s, kept as a custom field", name, v.version.ID()),
			})
		case present:
			if fe, bad := checkValue(f, value); bad {
				res.Errors = append(res.Errors, fe)
			}
		case f.Required() && !partial:
			res.Errors = append(res.Errors, FieldError{
				Field:   name,
				Reason:  ReasonMissingRequired,
				Message: fmt.Sprintf("%s: required field is missing", name),
			})
		}
	}
	return res
}

func checkValue(f *schema.Field, raw string) (FieldError, bool) {
	value, err := normalize.Value(raw)
	if err != nil {
		msg := err.Error()
		var ne *domain.NormalizationError
		if errors.As(err, &ne) {
			msg = ne.Msg
		}
		return FieldError{
			Field:   f.Name(),
			Value:   raw,
			Reason:  ReasonMalformedValue,
			Message: fmt.Sprintf("%s: %q cannot be normalized: %s", f.Name(), raw, msg),
		}, true
	}

	path := normalize.Path(value)
	_, matched := f.Walk(path)
	if matched == len(path) {
		return FieldError{}, false
	}

	parent := path[:matched]
	segment := path[matched]
	siblings := f.LabelsAt(parent)
	ranked := Rank(segment, siblings, MaxSuggestions)
	suggestions := make([]string, len(ranked))
	for i, label := range ranked {
		suggestions[i] = normalize.Join(append(slices.Clone(parent), label)...)
	}

	where := "at the top level"
	if matched > 0 {
		where = fmt.Sprintf("under %q", normalize.Join(parent...))
	}
	msg := fmt.Sprintf("%s: %q is not a valid value: %q does not exist %s", f.Name(), value, segment, where)
	if len(suggestions) > 0 {
		msg += "; did you mean: " + strings.Join(suggestions, ", ")
	}
	return FieldError{
		Field:       f.Name(),
		Value:       value,
		Segment:     segment,
		Depth:       matched + 1,
		Reason:      ReasonInvalidValue,
		Suggestions: suggestions,
		Message:     msg,
	}, true
}

func (v *Validator) unknownField(name, value string) FieldError {
	suggestions := Rank(name, v.version.Fields(), MaxSuggestions)
	msg := fmt.Sprintf("%s: unknown field in schema %s", name, v.version.ID())
	if len(suggestions) > 0 {
		msg += "; did you mean: " + strings.Join(suggestions, ", ")
	}
	return FieldError{
		Field:       name,
		Value:       value,
		Reason:      ReasonUnknownField,
		Suggestions: suggestions,
		Message:     msg,
	}
}
