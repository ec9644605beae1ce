package semdex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/semdex/internal/domain/query"
)

// QueryBuilder is a fluent builder for item queries. Filters added with Where
// are combined with AND. The builder is not safe for concurrent use.
type QueryBuilder struct {
	client *Client
	custom []string
	steps  []func(*query.Builder)
}

func newQueryBuilder(c *Client) *QueryBuilder {
	return &QueryBuilder{client: c}
}

// AllowCustomFields lets predicates reference fields the schema does not declare.
func (q *QueryBuilder) AllowCustomFields(names ...string) *QueryBuilder {
	q.custom = append(q.custom, names...)
	return q
}

// Where adds a filter.
func (q *QueryBuilder) Where(p Predicate) *QueryBuilder {
	return q.step(func(b *query.Builder) { b.Where(p.p) })
}

// AnyOf adds a filter matching items that satisfy at least one alternative.
// With no alternatives it adds nothing.
func (q *QueryBuilder) AnyOf(alternatives ...Predicate) *QueryBuilder {
	return q.step(func(b *query.Builder) { b.AnyOf(unwrap(alternatives)...) })
}

// OrderBy sorts by a descriptor field, "text", "created_at", "updated_at"
// or "metadata.<key>". Keys apply in the order added.
func (q *QueryBuilder) OrderBy(field string, descending bool) *QueryBuilder {
	dir := query.Asc
	if descending {
		dir = query.Desc
	}
	return q.step(func(b *query.Builder) { b.OrderBy(field, dir) })
}

// Offset skips the first n matches.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	return q.step(func(b *query.Builder) { b.Offset(n) })
}

// Limit caps the page size. n <= 0 means unbounded.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	return q.step(func(b *query.Builder) { b.Limit(n) })
}

func (q *QueryBuilder) step(fn func(*query.Builder)) *QueryBuilder {
	q.steps = append(q.steps, fn)
	return q
}

func (q *QueryBuilder) build() (query.Query, error) {
	b := query.NewBuilder(
		query.WithSchema(q.client.version),
		query.WithCustomFields(q.custom...),
	)
	for _, fn := range q.steps {
		fn(b)
	}
	return b.Build()
}

// String describes the query in English.
func (q *QueryBuilder) String() string {
	built, err := q.build()
	if err != nil {
		return "invalid query: " + err.Error()
	}
	return built.Explain()
}

// Do runs the query and returns the requested page.
func (q *QueryBuilder) Do(ctx context.Context) (QueryResult, error) {
	built, err := q.build()
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	res, err := q.client.search.Search(ctx, built)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}
	return QueryResult{
		Items:       fromIndexedAll(res.Items),
		Total:       res.Total,
		Explanation: res.Explanation,
	}, nil
}

// Count returns how many items match, ignoring pagination.
func (q *QueryBuilder) Count(ctx context.Context) (int, error) {
	built, err := q.build()
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	n, err := q.client.search.Count(ctx, built)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Distribution counts descriptor values across every match. With no fields
// given, every field present on a match is counted.
func (q *QueryBuilder) Distribution(ctx context.Context, fields ...string) ([]Distribution, error) {
	built, err := q.build()
	if err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	out, err := q.client.search.Distribution(ctx, built, fields...)
	if err != nil {
		return nil, fmt.Errorf("distribution: %w", err)
	}
	return out, nil
}

// Explain evaluates the query's filters against one item.
func (q *QueryBuilder) Explain(ctx context.Context, id string) (Explanation, error) {
	built, err := q.build()
	if err != nil {
		return Explanation{}, fmt.Errorf("explain: %w", err)
	}
	ex, err := q.client.search.ExplainItem(ctx, built, id)
	if err != nil {
		return Explanation{}, fmt.Errorf("explain: %w", err)
	}
	return Explanation{
		Item:    fromIndexed(ex.Item),
		Matched: ex.Matched,
		Trace:   ex.Trace,
		Text:    ex.Text,
	}, nil
}
