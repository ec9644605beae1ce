package batch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	dombatch "github.com/kailas-cloud/semdex/internal/domain/batch"
	"github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/usecase/index"
)

// MaxBatchSize is the default maximum number of entries per batch request.
const MaxBatchSize = 100

// Service runs bulk item operations with per-entry error reporting.
// One failing entry never aborts the rest.
type Service struct {
	add          ItemAdder
	del          ItemRemover
	maxBatchSize int
}

// New creates a batch service.
func New(add ItemAdder, del ItemRemover) *Service {
	return &Service{add: add, del: del, maxBatchSize: MaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// MaxSize returns the configured maximum batch size.
func (s *Service) MaxSize() int { return s.maxBatchSize }

// Add indexes entries in order.
func (s *Service) Add(ctx context.Context, inputs []index.AddInput) []dombatch.Result {
	results := make([]dombatch.Result, len(inputs))

	if err := s.checkSize(len(inputs)); err != nil {
		for i, in := range inputs {
			results[i] = dombatch.NewError(i, in.ID, err)
		}
		return results
	}

	log := logger.FromContext(ctx)
	for i, in := range inputs {
		it, err := s.add.Add(ctx, in)
		if err != nil {
			if !index.IsClientError(err) {
				log.Error("batch add failed", zap.Int("position", i), zap.Error(err))
			}
			results[i] = dombatch.NewError(i, in.ID, err)
			continue
		}
		results[i] = dombatch.NewOK(i, it.ID())
	}
	return results
}

// Remove deletes items by ID in order.
func (s *Service) Remove(ctx context.Context, ids []string) []dombatch.Result {
	results := make([]dombatch.Result, len(ids))

	if err := s.checkSize(len(ids)); err != nil {
		for i, id := range ids {
			results[i] = dombatch.NewError(i, id, err)
		}
		return results
	}

	for i, id := range ids {
		if err := s.del.Remove(ctx, id); err != nil {
			results[i] = dombatch.NewError(i, id, err)
			continue
		}
		results[i] = dombatch.NewOK(i, id)
	}
	return results
}

func (s *Service) checkSize(n int) error {
	if n > s.maxBatchSize {
		return fmt.Errorf("batch size %d exceeds %d: %w", n, s.maxBatchSize, domain.ErrValidation)
	}
	return nil
}
