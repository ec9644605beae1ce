// Package migrate moves descriptors between schema versions by renaming fields.
package migrate

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
)

// ErrFieldCollision signals two fields renamed onto the same name.
var ErrFieldCollision = errors.New("field collision after migration")

// Mapping renames fields: old name to new name. Unlisted fields keep their name.
type Mapping map[string]string

// Rename applies m to fields. Names on both sides are normalized first.
func Rename(fields map[string]string, m Mapping) (map[string]string, error) {
	renames := make(map[string]string, len(m))
	for from, to := range m {
		renames[normalize.FieldName(from)] = normalize.FieldName(to)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make(map[string]string, len(fields))
	for _, name := range names {
		field := normalize.FieldName(name)
		target := field
		if to, ok := renames[field]; ok && to != "" {
			target = to
		}
		if _, dup := out[target]; dup {
			return nil, fmt.Errorf("%w: %q", ErrFieldCollision, target)
		}
		out[target] = fields[name]
	}
	return out, nil
}

// Result is a migrated descriptor together with its complete validation against the target.
type Result struct {
	From       string
	To         string
	Descriptor descriptor.Descriptor
	Validation validate.Result
}

// Migrate renames the fields of d, rebuilds it against target and validates it completely.
// Validation failures are returned in the result; use validate.Strict to reject them.
func Migrate(d descriptor.Descriptor, from string, m Mapping, target *schema.Version) (Result, error) {
	if target == nil {
		return Result{}, errors.New("target schema version is required")
	}
	renamed, err := Rename(d.Fields(), m)
	if err != nil {
		return Result{}, err
	}
	migrated, err := descriptor.New(renamed, target)
	if err != nil {
		return Result{}, fmt.Errorf("rebuild descriptor: %w", err)
	}
	return Result{
		From:       from,
		To:         target.ID(),
		Descriptor: migrated,
		Validation: validate.New(target).ValidateDescriptor(migrated, false),
	}, nil
}
