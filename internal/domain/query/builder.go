package query

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
)

// Builder accumulates filters and options. It is not safe for concurrent use.
// Built queries never share state with the builder.
type Builder struct {
	version *schema.Version
	custom  []string

	preds  []predicate.Predicate
	sort   []SortKey
	offset int
	limit  int
}

// Option configures a Builder.
type Option func(*Builder)

// WithSchema validates field names and operands against v at Build.
func WithSchema(v *schema.Version) Option {
	return func(b *Builder) { b.version = v }
}

// WithCustomFields allows undeclared fields when a schema is set.
func WithCustomFields(names ...string) Option {
	return func(b *Builder) { b.custom = append(b.custom, names...) }
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Where conjoins p.
func (b *Builder) Where(p predicate.Predicate) *Builder {
	b.preds = append(b.preds, p)
	return b
}

// WhereField conjoins FieldEquals.
func (b *Builder) WhereField(field, value string) *Builder {
	return b.Where(predicate.FieldEquals(field, value))
}

// WhereFieldIn conjoins FieldIn.
func (b *Builder) WhereFieldIn(field string, values ...string) *Builder {
	return b.Where(predicate.FieldIn(field, values...))
}

// WhereFieldStartsWith conjoins FieldStartsWith.
func (b *Builder) WhereFieldStartsWith(field, prefix string) *Builder {
	return b.Where(predicate.FieldStartsWith(field, prefix))
}

// WhereHierarchy conjoins HierarchyMatches.
func (b *Builder) WhereHierarchy(field, ref string, exact bool) *Builder {
	return b.Where(predicate.HierarchyMatches(field, ref, exact))
}

// WhereDepth conjoins HierarchyDepth.
func (b *Builder) WhereDepth(field string, min, max int) *Builder {
	return b.Where(predicate.HierarchyDepth(field, min, max))
}

// WhereDomain filters the domain hierarchy.
func (b *Builder) WhereDomain(ref string, exact bool) *Builder {
	return b.WhereHierarchy("domain", ref, exact)
}

// WhereIntent filters the intent hierarchy.
func (b *Builder) WhereIntent(ref string, exact bool) *Builder {
	return b.WhereHierarchy("intent", ref, exact)
}

// WhereTone filters on tone.
func (b *Builder) WhereTone(v string) *Builder { return b.WhereField("tone", v) }

// WhereAudience filters on audience.
func (b *Builder) WhereAudience(v string) *Builder { return b.WhereField("audience", v) }

// WhereStability filters on stability.
func (b *Builder) WhereStability(v string) *Builder { return b.WhereField("stability", v) }

// WhereTextContains conjoins TextContains.
func (b *Builder) WhereTextContains(substring string, caseSensitive bool) *Builder {
	return b.Where(predicate.TextContains(substring, caseSensitive))
}

// WhereTextMatches conjoins TextMatches.
func (b *Builder) WhereTextMatches(fn func(string) bool, description string) *Builder {
	return b.Where(predicate.TextMatches(fn, description))
}

// WhereMetadata conjoins MetadataEquals.
func (b *Builder) WhereMetadata(key string, value any) *Builder {
	return b.Where(predicate.MetadataEquals(key, value))
}

// WhereMetadataExists conjoins MetadataExists.
func (b *Builder) WhereMetadataExists(key string) *Builder {
	return b.Where(predicate.MetadataExists(key))
}

// WhereCreatedAfter conjoins CreatedAfter.
func (b *Builder) WhereCreatedAfter(t time.Time, inclusive bool) *Builder {
	return b.Where(predicate.CreatedAfter(t, inclusive))
}

// WhereCreatedBefore conjoins CreatedBefore.
func (b *Builder) WhereCreatedBefore(t time.Time, inclusive bool) *Builder {
	return b.Where(predicate.CreatedBefore(t, inclusive))
}

// WhereUpdatedAfter conjoins UpdatedAfter.
func (b *Builder) WhereUpdatedAfter(t time.Time, inclusive bool) *Builder {
	return b.Where(predicate.UpdatedAfter(t, inclusive))
}

// WhereUpdatedBefore conjoins UpdatedBefore.
func (b *Builder) WhereUpdatedBefore(t time.Time, inclusive bool) *Builder {
	return b.Where(predicate.UpdatedBefore(t, inclusive))
}

// WhereCustom conjoins an opaque predicate.
func (b *Builder) WhereCustom(fn func(item.Item) bool, description string) *Builder {
	return b.Where(predicate.Custom(fn, description))
}

// AnyOf conjoins the disjunction of alternatives. With no alternatives it does nothing.
func (b *Builder) AnyOf(alternatives ...predicate.Predicate) *Builder {
	if len(alternatives) == 0 {
		return b
	}
	return b.Where(predicate.Or(alternatives...))
}

// Not conjoins the negation of p.
func (b *Builder) Not(p predicate.Predicate) *Builder {
	return b.Where(predicate.Not(p))
}

// OrderBy appends a sort key. Earlier keys take precedence.
func (b *Builder) OrderBy(field string, dir Direction) *Builder {
	b.sort = append(b.sort, SortKey{Field: field, Direction: dir})
	return b
}

// OrderByCreated sorts by creation time.
func (b *Builder) OrderByCreated(descending bool) *Builder {
	return b.OrderBy(SortCreated, dirOf(descending))
}

// OrderByUpdated sorts by modification time.
func (b *Builder) OrderByUpdated(descending bool) *Builder {
	return b.OrderBy(SortUpdated, dirOf(descending))
}

func dirOf(descending bool) Direction {
	if descending {
		return Desc
	}
	return Asc
}

// Offset skips the first n matches. A negative n fails at Build.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Limit caps the page size. n <= 0 means unbounded.
func (b *Builder) Limit(n int) *Builder {
	b.limit = max(n, 0)
	return b
}

// Clone copies the accumulated state. The copies evolve independently.
func (b *Builder) Clone() *Builder {
	cp := *b
	cp.preds = slices.Clone(b.preds)
	cp.sort = slices.Clone(b.sort)
	cp.custom = slices.Clone(b.custom)
	return &cp
}

// Reset drops filters, sorting and pagination. Options are kept.
func (b *Builder) Reset() *Builder {
	b.preds = nil
	b.sort = nil
	b.offset = 0
	b.limit = 0
	return b
}

// Predicate returns the combined filter: nothing, the single predicate, or an And.
func (b *Builder) Predicate() (predicate.Predicate, bool) {
	switch len(b.preds) {
	case 0:
		return predicate.Predicate{}, false
	case 1:
		return b.preds[0], true
	default:
		return predicate.And(b.preds...), true
	}
}

// Build checks the accumulated state and returns an immutable Query.
// Every problem is a *domain.QueryError; a built Query cannot fail in Execute.
func (b *Builder) Build() (Query, error) {
	if b.offset < 0 {
		return Query{}, &domain.QueryError{Msg: fmt.Sprintf("offset must be >= 0, got %d", b.offset)}
	}

	opts := []predicate.CheckOption{predicate.AllowCustomFields(b.custom...)}
	if b.version != nil {
		opts = append(opts, predicate.WithSchema(b.version))
	}
	p, _ := b.Predicate()
	if !p.IsZero() {
		if err := predicate.Check(p, opts...); err != nil {
			return Query{}, err
		}
	}

	keys := make([]SortKey, len(b.sort))
	for i, k := range b.sort {
		norm, err := b.sortKey(k)
		if err != nil {
			return Query{}, err
		}
		keys[i] = norm
	}

	return Query{pred: p, sort: keys, offset: b.offset, limit: b.limit}, nil
}

// MustBuild is Build for queries known to be valid. It panics on error.
func (b *Builder) MustBuild() Query {
	q, err := b.Build()
	if err != nil {
		panic(err)
	}
	return q
}

func (b *Builder) sortKey(k SortKey) (SortKey, error) {
	switch k.Direction {
	case "":
		k.Direction = Asc
	case Asc, Desc:
	default:
		return SortKey{}, &domain.QueryError{Field: k.Field, Msg: fmt.Sprintf("unknown sort direction %q", k.Direction)}
	}

	switch {
	case k.Field == SortCreated || k.Field == SortUpdated || k.Field == SortText:
		return k, nil
	case strings.HasPrefix(k.Field, MetadataPrefix):
		if strings.TrimPrefix(k.Field, MetadataPrefix) == "" {
			return SortKey{}, &domain.QueryError{Field: k.Field, Msg: "metadata sort key is required"}
		}
		return k, nil
	}

	field := normalize.FieldName(k.Field)
	if field == "" {
		return SortKey{}, &domain.QueryError{Msg: "sort field is required"}
	}
	if b.version != nil && !b.version.HasField(field) && !slices.ContainsFunc(b.custom, func(c string) bool {
		return normalize.FieldName(c) == field
	}) {
		return SortKey{}, &domain.QueryError{Field: field, Msg: "unknown sort field"}
	}
	k.Field = field
	return k, nil
}
