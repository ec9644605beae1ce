// Package schema holds immutable, versioned value trees for descriptor fields.
//
// A Registry is loaded once at startup (see LoadDir) and passed explicitly to
// validators and query builders. Nothing in this package mutates after construction.
package schema

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
)

// Version is one schema version: a set of field definitions.
type Version struct {
	id     string
	fields map[string]*Field
	names  []string
}

// NewVersion validates and creates a Version.
func NewVersion(id string, fields ...*Field) (*Version, error) {
	if id == "" {
		return nil, &domain.SchemaError{Msg: "version id is required"}
	}
	if len(fields) == 0 {
		return nil, &domain.SchemaError{Msg: fmt.Sprintf("version %q declares no fields", id)}
	}
	m := make(map[string]*Field, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			return nil, &domain.SchemaError{Msg: fmt.Sprintf("version %q: nil field", id)}
		}
		if _, dup := m[f.name]; dup {
			return nil, &domain.SchemaError{Field: f.name, Msg: fmt.Sprintf("declared twice in version %q", id)}
		}
		m[f.name] = f
		names = append(names, f.name)
	}
	slices.Sort(names)
	return &Version{id: id, fields: m, names: names}, nil
}

// ID returns the version identifier, e.g. "v1".
func (v *Version) ID() string { return v.id }

// Field looks up a field definition. The name is normalized first.
func (v *Version) Field(name string) (*Field, bool) {
	f, ok := v.fields[normalize.FieldName(name)]
	return f, ok
}

// HasField reports whether the version declares name.
func (v *Version) HasField(name string) bool {
	_, ok := v.Field(name)
	return ok
}

// Fields returns declared field names, sorted.
func (v *Version) Fields() []string { return slices.Clone(v.names) }

// Required returns names of required fields, sorted.
func (v *Version) Required() []string {
	var out []string
	for _, name := range v.names {
		if v.fields[name].required {
			out = append(out, name)
		}
	}
	return out
}

// Registry maps version ids to schema versions.
type Registry struct {
	versions map[string]*Version
	order    []string
}

// NewRegistry creates a Registry. Versions keep the order given.
func NewRegistry(versions ...*Version) (*Registry, error) {
	if len(versions) == 0 {
		return nil, &domain.SchemaError{Msg: "registry has no versions"}
	}
	r := &Registry{versions: make(map[string]*Version, len(versions))}
	for _, v := range versions {
		if v == nil {
			return nil, &domain.SchemaError{Msg: "nil version"}
		}
		if _, dup := r.versions[v.id]; dup {
			return nil, &domain.SchemaError{Msg: fmt.Sprintf("version %q registered twice", v.id)}
		}
		r.versions[v.id] = v
		r.order = append(r.order, v.id)
	}
	return r, nil
}

// Version returns a schema version by id.
func (r *Registry) Version(id string) (*Version, bool) {
	v, ok := r.versions[id]
	return v, ok
}

// Versions returns version ids in registration order.
func (r *Registry) Versions() []string { return slices.Clone(r.order) }

func sortStrings(s []string) { slices.Sort(s) }
