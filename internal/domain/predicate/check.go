package predicate

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
)

type checkConfig struct {
	validator *validate.Validator
	custom    map[string]bool
}

// CheckOption configures Check.
type CheckOption func(*checkConfig)

// WithSchema makes Check require declared field names and valid operands.
func WithSchema(v *schema.Version) CheckOption {
	return func(c *checkConfig) {
		if v != nil {
			c.validator = validate.New(v)
		}
	}
}

// AllowCustomFields lists undeclared field names accepted under WithSchema.
func AllowCustomFields(names ...string) CheckOption {
	return func(c *checkConfig) {
		for _, n := range names {
			c.custom[normalize.FieldName(n)] = true
		}
	}
}

// Check reports the first problem in p, depth first, as a *domain.QueryError.
// A predicate that passes Check evaluates without error.
func Check(p Predicate, opts ...CheckOption) error {
	cfg := checkConfig{custom: make(map[string]bool)}
	for _, o := range opts {
		o(&cfg)
	}
	if err := cfg.check(p); err != nil {
		return err
	}
	return nil
}

func (c *checkConfig) check(p Predicate) *domain.QueryError {
	if p.kind == "" {
		return &domain.QueryError{Msg: "empty predicate"}
	}
	if p.err != nil {
		return p.err
	}
	if p.kind == KindNot && len(p.children) != 1 {
		return &domain.QueryError{Msg: "not takes exactly one predicate"}
	}
	for _, child := range p.children {
		if err := c.check(child); err != nil {
			return err
		}
	}
	if c.validator == nil || p.field == "" {
		return nil
	}
	return c.checkField(p)
}

func (c *checkConfig) checkField(p Predicate) *domain.QueryError {
	version := c.validator.Version()
	if !version.HasField(p.field) {
		if c.custom[p.field] {
			return nil
		}
		return &domain.QueryError{
			Field:       p.field,
			Msg:         fmt.Sprintf("unknown field in schema %s", version.ID()),
			Suggestions: validate.Rank(p.field, version.Fields(), validate.MaxSuggestions),
		}
	}

	var operands []string
	switch p.kind {
	case KindFieldEquals, KindHierarchy:
		operands = []string{p.value}
	case KindFieldIn:
		operands = slices.Clone(p.values)
	}
	for _, v := range operands {
		res := c.validator.ValidateValue(p.field, v)
		if res.Valid() {
			continue
		}
		fe := res.Errors[0]
		return &domain.QueryError{
			Field:       p.field,
			Value:       v,
			Msg:         fmt.Sprintf("value not in schema %s: %q does not exist", version.ID(), fe.Segment),
			Suggestions: fe.Suggestions,
		}
	}
	return nil
}
