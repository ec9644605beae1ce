package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain/explain"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
	"github.com/kailas-cloud/semdex/internal/domain/query"
	"github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/metrics"
)

// Explanation is why one item does or does not satisfy a query.
type Explanation struct {
	Item    item.Indexed
	Matched bool
	Trace   explain.Trace
	Text    string
}

// Service runs built queries over a snapshot of the index.
type Service struct {
	items  Snapshotter
	reader ItemReader
}

// New creates a search service.
func New(items Snapshotter, reader ItemReader) *Service {
	return &Service{items: items, reader: reader}
}

// Search executes q and returns the requested page with the total match count.
func (s *Service) Search(ctx context.Context, q query.Query) (query.Result[item.Indexed], error) {
	start := time.Now()

	items, err := s.items.Snapshot(ctx)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return query.Result[item.Indexed]{}, fmt.Errorf("load snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		metrics.QueriesTotal.WithLabelValues("canceled").Inc()
		return query.Result[item.Indexed]{}, fmt.Errorf("search: %w", err)
	}

	res := query.Execute(q, items)

	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	metrics.QueryMatches.Observe(float64(res.Total))
	metrics.QueryDuration.Observe(time.Since(start).Seconds())

	logger.FromContext(ctx).Debug("query executed",
		zap.String("query", res.Explanation),
		zap.Int("scanned", len(items)),
		zap.Int("matched", res.Total),
		zap.Int("returned", len(res.Items)),
	)
	return res, nil
}

// Count returns how many items satisfy q, ignoring pagination.
func (s *Service) Count(ctx context.Context, q query.Query) (int, error) {
	items, err := s.items.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	return query.Count(q, items), nil
}

// Distribution counts descriptor values across every item matching q.
func (s *Service) Distribution(ctx context.Context, q query.Query, fields ...string) ([]query.FieldDistribution, error) {
	items, err := s.items.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	p, ok := q.Predicate()
	if !ok {
		p = predicate.True()
	}
	return query.Distribution(query.Filter(items, p), fields...), nil
}

// ExplainItem evaluates q's predicate against one item without short-circuiting.
func (s *Service) ExplainItem(ctx context.Context, q query.Query, id string) (Explanation, error) {
	it, err := s.reader.Get(ctx, id)
	if err != nil {
		return Explanation{}, fmt.Errorf("get item %s: %w", id, err)
	}
	p, ok := q.Predicate()
	if !ok {
		p = predicate.True()
	}
	tr := explain.Evaluate(it, p)
	return Explanation{
		Item:    it,
		Matched: tr.Matched,
		Trace:   tr,
		Text:    explain.Match(it, p),
	}, nil
}
