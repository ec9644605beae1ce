package transfer

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/usecase/index"
)

// Snapshotter returns every indexed item in insertion order.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]item.Indexed, error)
}

// ItemAdder adds a single item.
type ItemAdder interface {
	Add(ctx context.Context, in index.AddInput) (item.Indexed, error)
}
