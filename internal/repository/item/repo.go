// Package item stores indexed items in Redis or Valkey hashes.
//
// Layout under the key prefix:
//
//	item:{id}  hash of item fields
//	items      sorted set of ids scored by insertion sequence
//	content    hash of content hash -> id
//	seq        insertion counter
package item

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kailas-cloud/semdex/internal/db"
	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	domitem "github.com/kailas-cloud/semdex/internal/domain/item"
)

// store is the consumer interface for items (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Repo implements usecase/index.Repository.
type Repo struct {
	store  store
	prefix string
	fields descriptor.FieldSet
}

// New creates an item repository. fields classifies descriptor fields on read.
func New(s store, prefix string, fields descriptor.FieldSet) *Repo {
	return &Repo{store: s, prefix: prefix, fields: fields}
}

func (r *Repo) itemKey(id string) string { return r.prefix + "item:" + id }
func (r *Repo) orderKey() string         { return r.prefix + "items" }
func (r *Repo) contentKey() string       { return r.prefix + "content" }
func (r *Repo) seqKey() string           { return r.prefix + "seq" }

// Insert stores a new item and appends it to the order index.
func (r *Repo) Insert(ctx context.Context, it domitem.Indexed) error {
	key := r.itemKey(it.ID())
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if exists {
		return domain.ErrAlreadyExists
	}

	fields, err := buildHashFields(it)
	if err != nil {
		return err
	}
	seq, err := r.store.Incr(ctx, r.seqKey())
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if err := r.store.ZAdd(ctx, r.orderKey(), float64(seq), it.ID()); err != nil {
		return fmt.Errorf("zadd %s: %w", it.ID(), err)
	}
	if err := r.indexContent(ctx, it); err != nil {
		return err
	}
	return nil
}

// Replace overwrites an existing item. Its order position is kept.
func (r *Repo) Replace(ctx context.Context, it domitem.Indexed) error {
	old, err := r.Get(ctx, it.ID())
	if err != nil {
		return err
	}

	fields, err := buildHashFields(it)
	if err != nil {
		return err
	}
	key := r.itemKey(it.ID())
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if old.ContentHash() != it.ContentHash() {
		if err := r.unindexContent(ctx, old); err != nil {
			return err
		}
		if err := r.indexContent(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// Get returns an item by ID.
func (r *Repo) Get(ctx context.Context, id string) (domitem.Indexed, error) {
	key := r.itemKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domitem.Indexed{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domitem.Indexed{}, domain.ErrNotFound
	}
	return parseHashFields(id, m, r.fields)
}

// Delete removes an item, its order entry and its content index entry.
func (r *Repo) Delete(ctx context.Context, id string) error {
	it, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.Del(ctx, r.itemKey(id)); err != nil {
		return fmt.Errorf("del %s: %w", id, err)
	}
	if err := r.store.ZRem(ctx, r.orderKey(), id); err != nil {
		return fmt.Errorf("zrem %s: %w", id, err)
	}
	return r.unindexContent(ctx, it)
}

// List returns a window in insertion order.
func (r *Repo) List(ctx context.Context, offset, limit int) ([]domitem.Indexed, error) {
	start := int64(offset)
	stop := int64(-1)
	if limit > 0 && int64(limit) <= math.MaxInt64-start {
		stop = start + int64(limit) - 1
	}
	ids, err := r.store.ZRange(ctx, r.orderKey(), start, stop)
	if err != nil {
		return nil, fmt.Errorf("zrange: %w", err)
	}
	if len(ids) == 0 {
		return []domitem.Indexed{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id)
	}
	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall items: %w", err)
	}

	out := make([]domitem.Indexed, 0, len(ids))
	for i, m := range rows {
		// Deleted between ZRANGE and HGETALL.
		if len(m) == 0 {
			continue
		}
		it, err := parseHashFields(ids[i], m, r.fields)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Count returns the number of stored items.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.ZCard(ctx, r.orderKey())
	if err != nil {
		return 0, fmt.Errorf("zcard: %w", err)
	}
	return int(n), nil
}

// FindByContentHash looks up the content index.
func (r *Repo) FindByContentHash(ctx context.Context, hash string) (string, bool, error) {
	id, err := r.store.HGet(ctx, r.contentKey(), hash)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("hget content %s: %w", hash, err)
	}
	return id, true, nil
}

// Clear removes every key under the prefix that this repository owns.
func (r *Repo) Clear(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, r.itemKey("*"))
	if err != nil {
		return fmt.Errorf("scan items: %w", err)
	}
	keys = append(keys, r.orderKey(), r.contentKey(), r.seqKey())
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("del items: %w", err)
	}
	return nil
}

// indexContent records it as holder of its content hash unless another item already is.
func (r *Repo) indexContent(ctx context.Context, it domitem.Indexed) error {
	_, found, err := r.FindByContentHash(ctx, it.ContentHash())
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	if err := r.store.HSet(ctx, r.contentKey(), map[string]string{it.ContentHash(): it.ID()}); err != nil {
		return fmt.Errorf("hset content: %w", err)
	}
	return nil
}

// unindexContent drops the content entry if it points at it.
func (r *Repo) unindexContent(ctx context.Context, it domitem.Indexed) error {
	id, found, err := r.FindByContentHash(ctx, it.ContentHash())
	if err != nil {
		return err
	}
	if !found || id != it.ID() {
		return nil
	}
	if err := r.store.HDel(ctx, r.contentKey(), it.ContentHash()); err != nil {
		return fmt.Errorf("hdel content: %w", err)
	}
	return nil
}
