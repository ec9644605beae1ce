// Package transfer exports the index to archives and imports archives back
// through the validating add path.
package transfer

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/semdex/internal/domain/batch"
	"github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/repository/archive"
	"github.com/kailas-cloud/semdex/internal/usecase/index"
)

// Service moves items between the index and archive files.
type Service struct {
	items  Snapshotter
	add    ItemAdder
	fields []string
}

// New creates a transfer service. fields orders the descriptor columns of CSV exports.
func New(items Snapshotter, add ItemAdder, fields []string) *Service {
	return &Service{items: items, add: add, fields: fields}
}

// Export writes every item to w and returns how many were written.
func (s *Service) Export(ctx context.Context, w io.Writer, f archive.Format) (int, error) {
	items, err := s.items.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := archive.Encode(w, f, archive.FromItems(items), s.fields); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	logger.FromContext(ctx).Debug("index exported",
		zap.String("format", string(f)),
		zap.Int("items", len(items)),
	)
	return len(items), nil
}

// ExportFile writes every item to path. An empty format is taken from the extension.
func (s *Service) ExportFile(ctx context.Context, path, format string) (int, error) {
	f, err := archive.FormatFor(path, format)
	if err != nil {
		return 0, err
	}
	items, err := s.items.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if err := archive.SaveFile(path, f, archive.FromItems(items), s.fields); err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return len(items), nil
}

// Import decodes r and adds each record. A malformed archive fails as a whole;
// once decoded, every record succeeds or fails on its own.
func (s *Service) Import(ctx context.Context, r io.Reader, f archive.Format) ([]dombatch.Result, error) {
	recs, err := archive.Decode(r, f)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return s.addAll(ctx, recs), nil
}

// ImportFile reads path and adds each record. An empty format is taken from the extension.
func (s *Service) ImportFile(ctx context.Context, path, format string) ([]dombatch.Result, error) {
	f, err := archive.FormatFor(path, format)
	if err != nil {
		return nil, err
	}
	recs, err := archive.LoadFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return s.addAll(ctx, recs), nil
}

func (s *Service) addAll(ctx context.Context, recs []archive.Record) []dombatch.Result {
	log := logger.FromContext(ctx)
	results := make([]dombatch.Result, len(recs))
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			results[i] = dombatch.NewError(i, rec.ID, err)
			continue
		}
		it, err := s.add.Add(ctx, index.AddInput{
			ID:         rec.ID,
			Text:       rec.Text,
			Descriptor: rec.Descriptor,
			Metadata:   rec.Metadata,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		})
		if err != nil {
			if !index.IsClientError(err) {
				log.Error("import record failed", zap.Int("position", i), zap.Error(err))
			}
			results[i] = dombatch.NewError(i, rec.ID, err)
			continue
		}
		results[i] = dombatch.NewOK(i, it.ID())
	}

	ok, failed := dombatch.Counts(results)
	log.Debug("index imported", zap.Int("added", ok), zap.Int("failed", failed))
	return results
}
