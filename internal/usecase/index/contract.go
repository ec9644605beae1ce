package index

import (
	"context"

	"github.com/kailas-cloud/semdex/internal/domain/item"
)

// Repository defines the storage contract for indexed items.
// Items come back in insertion order.
type Repository interface {
	// Insert stores a new item. domain.ErrAlreadyExists if the ID is taken.
	Insert(ctx context.Context, it item.Indexed) error
	// Replace overwrites an existing item. domain.ErrNotFound if it is missing.
	Replace(ctx context.Context, it item.Indexed) error
	Get(ctx context.Context, id string) (item.Indexed, error)
	Delete(ctx context.Context, id string) error
	// List returns a window in insertion order. limit <= 0 means all remaining items.
	List(ctx context.Context, offset, limit int) ([]item.Indexed, error)
	Count(ctx context.Context) (int, error)
	// FindByContentHash returns an item ID whose text hashes to hash.
	FindByContentHash(ctx context.Context, hash string) (id string, found bool, err error)
	Clear(ctx context.Context) error
}
