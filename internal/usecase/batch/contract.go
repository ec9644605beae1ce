package batch

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/usecase/index"
)

// ItemAdder adds a single item.
type ItemAdder interface {
	Add(ctx context.Context, in index.AddInput) (item.Indexed, error)
}

// ItemRemover removes a single item.
type ItemRemover interface {
	Remove(ctx context.Context, id string) error
}
