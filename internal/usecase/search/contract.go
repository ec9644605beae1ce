package search

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/domain/item"
)

// Snapshotter returns a point-in-time copy of every indexed item.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]item.Indexed, error)
}

// ItemReader reads a single item.
type ItemReader interface {
	Get(ctx context.Context, id string) (item.Indexed, error)
}
