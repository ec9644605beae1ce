package semdex

import (
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/explain"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/query"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
)

// Item is an indexed item for the low-level API.
type Item struct {
	ID          string
	Text        string
	Descriptor  map[string]string
	Metadata    map[string]any
	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewItem describes an item to add. An empty ID gets a random UUID.
type NewItem struct {
	ID         string
	Text       string
	Descriptor map[string]string
	Metadata   map[string]any
}

// ItemUpdate is a partial item update.
// Nil Text or Descriptor is unchanged; a non-nil Descriptor replaces the old one.
// Metadata is merged and a nil value removes its key.
type ItemUpdate struct {
	Text       *string
	Descriptor map[string]string
	Metadata   map[string]any
}

// BatchResult is the outcome of one item in a batch operation.
type BatchResult struct {
	Position int
	ID       string
	OK       bool
	Err      error
}

// ListResult is one page of items in insertion order.
type ListResult struct {
	Items  []Item
	Total  int
	Offset int
	Limit  int
}

// QueryResult is one page of query matches.
type QueryResult struct {
	Items []Item
	// Total counts every match before pagination.
	Total       int
	Explanation string
}

// FieldError describes one rejected descriptor field.
type FieldError = validate.FieldError

// ValidationResult is the outcome of a validation call.
type ValidationResult = validate.Result

// Distribution lists value counts for one field, most frequent first.
type Distribution = query.FieldDistribution

// Trace is a step-by-step evaluation of a query against one item.
type Trace = explain.Trace

// Explanation is why one item does or does not satisfy a query.
type Explanation struct {
	Item    Item
	Matched bool
	Trace   Trace
	Text    string
}

func fromIndexed(it item.Indexed) Item {
	return Item{
		ID:          it.ID(),
		Text:        it.Text(),
		Descriptor:  it.Descriptor().Fields(),
		Metadata:    it.Metadata(),
		ContentHash: it.ContentHash(),
		CreatedAt:   it.CreatedAt(),
		UpdatedAt:   it.UpdatedAt(),
	}
}

func fromIndexedAll(items []item.Indexed) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = fromIndexed(it)
	}
	return out
}
