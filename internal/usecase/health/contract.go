package health

import "context"

// StoragePinger checks storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// IndexCounter reports how many items are indexed.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}
