package semdex

import (
	"context"
	"fmt"
)

// TypedIndex is a generic, struct-first view of a Client.
// The mapping is inferred from T's struct tags at construction time.
type TypedIndex[T any] struct {
	client *Client
	meta   *schemaMeta
}

// NewIndex creates a typed index handle. T must be a struct with semdex tags
// marking an id and a text field. The mapping is parsed once and cached.
func NewIndex[T any](client *Client) (*TypedIndex[T], error) {
	meta, err := parseSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("new index: %w", err)
	}
	return &TypedIndex[T]{client: client, meta: meta}, nil
}

// Add indexes v and returns it with the assigned ID and timestamps.
func (idx *TypedIndex[T]) Add(ctx context.Context, v T) (T, error) {
	it, err := idx.client.Add(ctx, idx.meta.toNewItem(v))
	if err != nil {
		var zero T
		return zero, err
	}
	return idx.cast(it)
}

// AddBatch indexes items independently.
func (idx *TypedIndex[T]) AddBatch(ctx context.Context, items []T) []BatchResult {
	in := make([]NewItem, len(items))
	for i, v := range items {
		in[i] = idx.meta.toNewItem(v)
	}
	return idx.client.AddBatch(ctx, in)
}

// Get retrieves a typed item by ID.
func (idx *TypedIndex[T]) Get(ctx context.Context, id string) (T, error) {
	it, err := idx.client.Get(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return idx.cast(it)
}

// Replace overwrites the text, descriptor and mapped metadata of an existing item.
func (idx *TypedIndex[T]) Replace(ctx context.Context, v T) (T, error) {
	in := idx.meta.toNewItem(v)
	it, err := idx.client.Update(ctx, in.ID, idx.meta.toUpdate(v))
	if err != nil {
		var zero T
		return zero, err
	}
	return idx.cast(it)
}

// Delete removes an item by ID.
func (idx *TypedIndex[T]) Delete(ctx context.Context, id string) error {
	return idx.client.Delete(ctx, id)
}

// Count returns the number of indexed items.
func (idx *TypedIndex[T]) Count(ctx context.Context) (int, error) {
	return idx.client.Count(ctx)
}

// Validate checks v's descriptor fields without storing anything.
func (idx *TypedIndex[T]) Validate(v T) ValidationResult {
	return idx.client.Validate(idx.meta.toNewItem(v).Descriptor, false)
}

// Query returns a fluent query builder whose results decode into T.
func (idx *TypedIndex[T]) Query() *TypedQuery[T] {
	return &TypedQuery[T]{QueryBuilder: idx.client.Query(), idx: idx}
}

func (idx *TypedIndex[T]) cast(it Item) (T, error) {
	v, ok := idx.meta.fromItem(it).(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("decode item %s: type assertion failed", it.ID)
	}
	return v, nil
}

// TypedQuery is a QueryBuilder whose Do decodes matches into T.
// Builder methods return the embedded *QueryBuilder, so call All last.
type TypedQuery[T any] struct {
	*QueryBuilder
	idx *TypedIndex[T]
}

// All runs the query and returns typed matches with the total match count.
func (q *TypedQuery[T]) All(ctx context.Context) ([]T, int, error) {
	res, err := q.Do(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]T, 0, len(res.Items))
	for _, it := range res.Items {
		v, err := q.idx.cast(it)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, res.Total, nil
}
