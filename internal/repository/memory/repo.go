// Package memory is an in-process item repository. It is the default store
// and the one tests run against.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/kailas-cloud/semdex/internal/domain"
	domitem "github.com/kailas-cloud/semdex/internal/domain/item"
)

// Repo implements usecase/index.Repository in memory.
type Repo struct {
	mu     sync.RWMutex
	order  []string
	items  map[string]domitem.Indexed
	hashes map[string][]string // content hash -> ids in insertion order
}

// New creates an empty repository.
func New() *Repo {
	return &Repo{
		items:  make(map[string]domitem.Indexed),
		hashes: make(map[string][]string),
	}
}

// Ping always succeeds.
func (r *Repo) Ping(_ context.Context) error { return nil }

// Insert stores a new item.
func (r *Repo) Insert(_ context.Context, it domitem.Indexed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[it.ID()]; ok {
		return domain.ErrAlreadyExists
	}
	r.items[it.ID()] = it
	r.order = append(r.order, it.ID())
	r.hashes[it.ContentHash()] = append(r.hashes[it.ContentHash()], it.ID())
	return nil
}

// Replace overwrites an existing item in place; its position is kept.
func (r *Repo) Replace(_ context.Context, it domitem.Indexed) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.items[it.ID()]
	if !ok {
		return domain.ErrNotFound
	}
	if old.ContentHash() != it.ContentHash() {
		r.unhash(old)
		r.hashes[it.ContentHash()] = append(r.hashes[it.ContentHash()], it.ID())
	}
	r.items[it.ID()] = it
	return nil
}

// Get returns an item by ID.
func (r *Repo) Get(_ context.Context, id string) (domitem.Indexed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return domitem.Indexed{}, domain.ErrNotFound
	}
	return it, nil
}

// Delete removes an item.
func (r *Repo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.items, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.unhash(it)
	return nil
}

// List returns a copy of one window in insertion order.
func (r *Repo) List(_ context.Context, offset, limit int) ([]domitem.Indexed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if offset >= len(r.order) {
		return []domitem.Indexed{}, nil
	}
	end := len(r.order)
	if limit > 0 && limit < end-offset {
		end = offset + limit
	}
	out := make([]domitem.Indexed, 0, end-offset)
	for _, id := range r.order[offset:end] {
		out = append(out, r.items[id])
	}
	return out, nil
}

// Count returns the number of stored items.
func (r *Repo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order), nil
}

// FindByContentHash returns the earliest item with the given content hash.
func (r *Repo) FindByContentHash(_ context.Context, hash string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.hashes[hash]
	if len(ids) == 0 {
		return "", false, nil
	}
	return ids[0], true, nil
}

// Clear removes everything.
func (r *Repo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = nil
	r.items = make(map[string]domitem.Indexed)
	r.hashes = make(map[string][]string)
	return nil
}

func (r *Repo) unhash(it domitem.Indexed) {
	ids := slices.DeleteFunc(r.hashes[it.ContentHash()], func(s string) bool { return s == it.ID() })
	if len(ids) == 0 {
		delete(r.hashes, it.ContentHash())
		return
	}
	r.hashes[it.ContentHash()] = ids
}
