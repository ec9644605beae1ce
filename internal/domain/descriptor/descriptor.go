// Package descriptor holds the immutable, normalized field map describing one item.
package descriptor

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
)

// Kind tells a schema-declared field from an opaque custom one.
type Kind uint8

// Field kinds.
const (
	KindUnknown Kind = iota
	KindSchema
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// FieldSet classifies field names. *schema.Version implements it.
type FieldSet interface {
	HasField(name string) bool
}

// Descriptor is an immutable map of canonical field names to canonical values.
// The zero value is an empty descriptor.
type Descriptor struct {
	values map[string]string
	kinds  map[string]Kind
	names  []string
	set    FieldSet
}

// New normalizes raw and classifies each field against fields.
// A nil FieldSet makes every field custom. Blank values are dropped.
// New does not validate values against the schema.
func New(raw map[string]string, fields FieldSet) (Descriptor, error) {
	present := make(map[string]string, len(raw))
	for k, v := range raw {
		if strings.TrimSpace(v) == "" {
			continue
		}
		present[k] = v
	}
	values, err := normalize.Fields(present)
	if err != nil {
		return Descriptor{}, err
	}
	return build(values, fields), nil
}

// FromMap is New for decoded documents. Every non-nil value must be a string.
func FromMap(raw map[string]any, fields FieldSet) (Descriptor, error) {
	m := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			m[k] = val
		default:
			return Descriptor{}, &domain.NormalizationError{
				Field: normalize.FieldName(k),
				Value: fmt.Sprint(v),
				Msg:   fmt.Sprintf("value must be a string, got %T", v),
			}
		}
	}
	return New(m, fields)
}

func build(values map[string]string, fields FieldSet) Descriptor {
	kinds := make(map[string]Kind, len(values))
	names := make([]string, 0, len(values))
	for name := range values {
		if fields != nil && fields.HasField(name) {
			kinds[name] = KindSchema
		} else {
			kinds[name] = KindCustom
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return Descriptor{values: values, kinds: kinds, names: names, set: fields}
}

// Get returns the canonical value of a field. The name is normalized first.
func (d Descriptor) Get(name string) (string, bool) {
	v, ok := d.values[normalize.FieldName(name)]
	return v, ok
}

// Kind returns how the field was classified at construction.
func (d Descriptor) Kind(name string) Kind {
	return d.kinds[normalize.FieldName(name)]
}

// Has reports whether the field is present.
func (d Descriptor) Has(name string) bool {
	_, ok := d.Get(name)
	return ok
}

// SchemaFields returns a copy of the schema-declared fields.
func (d Descriptor) SchemaFields() map[string]string { return d.filter(KindSchema) }

// CustomFields returns a copy of the custom fields.
func (d Descriptor) CustomFields() map[string]string { return d.filter(KindCustom) }

func (d Descriptor) filter(k Kind) map[string]string {
	out := make(map[string]string)
	for name, v := range d.values {
		if d.kinds[name] == k {
			out[name] = v
		}
	}
	return out
}

// Fields returns a copy of every field.
func (d Descriptor) Fields() map[string]string {
	if d.values == nil {
		return map[string]string{}
	}
	return maps.Clone(d.values)
}

// Names returns field names, sorted.
func (d Descriptor) Names() []string { return slices.Clone(d.names) }

// Len returns the number of fields.
func (d Descriptor) Len() int { return len(d.names) }

// IsEmpty reports whether the descriptor has no fields.
func (d Descriptor) IsEmpty() bool { return len(d.names) == 0 }

// Key is the canonical serialization: sorted name=value pairs joined by ";".
func (d Descriptor) Key() string {
	var b strings.Builder
	for i, name := range d.names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(d.values[name])
	}
	return b.String()
}

// Hash is a stable 64-bit hash of Key.
func (d Descriptor) Hash() uint64 {
	h := xxhash.New()
	for _, name := range d.names {
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(d.values[name])
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Equal compares the complete canonical maps. Field kinds are not compared.
func (d Descriptor) Equal(other Descriptor) bool {
	return maps.Equal(d.values, other.values)
}

// With returns a new descriptor with name set to value. A blank value removes the field.
func (d Descriptor) With(name, value string) (Descriptor, error) {
	m := d.Fields()
	field := normalize.FieldName(name)
	if field == "" {
		return Descriptor{}, &domain.NormalizationError{Value: name, Msg: "field name is empty"}
	}
	if strings.TrimSpace(value) == "" {
		delete(m, field)
		return build(m, d.set), nil
	}
	v, err := normalize.Value(value)
	if err != nil {
		var ne *domain.NormalizationError
		if errors.As(err, &ne) {
			cp := *ne
			cp.Field = field
			return Descriptor{}, &cp
		}
		return Descriptor{}, err
	}
	m[field] = v
	return build(m, d.set), nil
}

// Reclassify returns the same values classified against another field set.
func (d Descriptor) Reclassify(fields FieldSet) Descriptor {
	return build(d.Fields(), fields)
}

func (d Descriptor) String() string {
	if len(d.names) == 0 {
		return "{}"
	}
	parts := make([]string, len(d.names))
	for i, name := range d.names {
		parts[i] = fmt.Sprintf("%s: %q", name, d.values[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
