// Package semdex is an in-process client for a schema-checked item index.
//
// A Client loads the schema registry once, binds to one version and stores
// items in memory or in Redis/Valkey:
//
//	c, err := semdex.New(semdex.WithSchemaDir("schema"))
//	if err != nil { ... }
//	defer c.Close()
//
//	it, err := c.Add(ctx, semdex.NewItem{
//		Text:       "Protein folding dynamics",
//		Descriptor: map[string]string{"domain": "Science → Biology"},
//	})
//	res, err := c.Query().Where(semdex.Under("domain", "Science")).Do(ctx)
package semdex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kailas-cloud/semdex/internal/db"
	dbRedis "github.com/kailas-cloud/semdex/internal/db/redis"
	dombatch "github.com/kailas-cloud/semdex/internal/domain/batch"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
	"github.com/kailas-cloud/semdex/internal/repository/archive"
	itemrepo "github.com/kailas-cloud/semdex/internal/repository/item"
	"github.com/kailas-cloud/semdex/internal/repository/memory"
	batchuc "github.com/kailas-cloud/semdex/internal/usecase/batch"
	indexuc "github.com/kailas-cloud/semdex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/semdex/internal/usecase/search"
	transferuc "github.com/kailas-cloud/semdex/internal/usecase/transfer"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the semdex SDK entry point.
type Client struct {
	store    db.Store // nil for the memory driver
	pinger   db.Pinger
	registry *schema.Registry
	version  *schema.Version

	items    *indexuc.Service
	search   *searchuc.Service
	batch    *batchuc.Service
	transfer *transferuc.Service
}

// New loads the schema registry, connects to storage and wires the services.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	registry, err := schema.LoadDir(cfg.schemaDir)
	if err != nil {
		return nil, fmt.Errorf("semdex: load schema: %w", err)
	}
	version, ok := registry.Version(cfg.schemaVersion)
	if !ok {
		return nil, fmt.Errorf("semdex: schema version %q not found (have %v)", cfg.schemaVersion, registry.Versions())
	}

	c := &Client{registry: registry, version: version}
	var repo indexuc.Repository

	switch cfg.driver {
	case "memory":
		mem := memory.New()
		repo, c.pinger = mem, mem
	case "redis", "valkey":
		store, err := createStore(cfg)
		if err != nil {
			return nil, err
		}
		ctx := context.Background()
		if err := store.WaitForReady(ctx, cfg.readiness); err != nil {
			store.Close()
			return nil, fmt.Errorf("semdex: database not ready: %w", err)
		}
		c.store, c.pinger = store, store
		repo = itemrepo.New(store, cfg.keyPrefix, version)
	default:
		return nil, fmt.Errorf("semdex: unknown driver %q", cfg.driver)
	}

	c.wire(repo, cfg)
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	if len(cfg.addrs) == 0 {
		return nil, errors.New("semdex: database address required (use WithRedis or WithValkey)")
	}
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("semdex: create %s store: %w", cfg.driver, err)
	}
	return s, nil
}

func (c *Client) wire(repo indexuc.Repository, cfg *clientConfig) {
	c.items = indexuc.New(repo, c.version).
		WithValidation(cfg.validate).
		WithDuplicates(cfg.allowDuplicates)
	c.search = searchuc.New(c.items, c.items)
	c.batch = batchuc.New(c.items, c.items)
	c.transfer = transferuc.New(c.items, c.items, c.version.Fields())
	if cfg.maxBatchSize > 0 {
		c.batch = c.batch.WithMaxBatchSize(cfg.maxBatchSize)
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks storage connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// SchemaVersion returns the active schema version id.
func (c *Client) SchemaVersion() string { return c.version.ID() }

// SchemaVersions returns every loaded version id in registry order.
func (c *Client) SchemaVersions() []string { return c.registry.Versions() }

// Fields returns the field names the active version declares.
func (c *Client) Fields() []string { return c.version.Fields() }

// Options returns the canonical values a field accepts, paths joined with " → ".
func (c *Client) Options(field string) ([]string, error) {
	f, ok := c.version.Field(field)
	if !ok {
		return nil, fmt.Errorf("field %q: %w", field, ErrNotFound)
	}
	return f.Values(), nil
}

// Normalize canonicalizes one descriptor value.
func (c *Client) Normalize(value string) (string, error) {
	return normalize.Value(value)
}

// Validate checks descriptor fields against the active version without storing anything.
func (c *Client) Validate(fields map[string]string, partial bool) ValidationResult {
	return c.items.Validate(fields, partial)
}

// Add indexes a new item.
func (c *Client) Add(ctx context.Context, in NewItem) (Item, error) {
	it, err := c.items.Add(ctx, toAddInput(in))
	if err != nil {
		return Item{}, fmt.Errorf("add: %w", err)
	}
	return fromIndexed(it), nil
}

// Get returns an item by ID.
func (c *Client) Get(ctx context.Context, id string) (Item, error) {
	it, err := c.items.Get(ctx, id)
	if err != nil {
		return Item{}, fmt.Errorf("get: %w", err)
	}
	return fromIndexed(it), nil
}

// Update applies a partial update to an item.
func (c *Client) Update(ctx context.Context, id string, u ItemUpdate) (Item, error) {
	it, err := c.items.Update(ctx, id, indexuc.UpdateInput{
		Text:       u.Text,
		Descriptor: u.Descriptor,
		Metadata:   u.Metadata,
	})
	if err != nil {
		return Item{}, fmt.Errorf("update: %w", err)
	}
	return fromIndexed(it), nil
}

// Delete removes an item by ID.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.items.Remove(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// List returns one page of items in insertion order. limit 0 selects the default page size.
func (c *Client) List(ctx context.Context, offset, limit int) (ListResult, error) {
	page, err := c.items.List(ctx, offset, limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("list: %w", err)
	}
	return ListResult{
		Items:  fromIndexedAll(page.Items),
		Total:  page.Total,
		Offset: page.Offset,
		Limit:  page.Limit,
	}, nil
}

// Count returns the number of indexed items.
func (c *Client) Count(ctx context.Context) (int, error) {
	n, err := c.items.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Clear removes every item.
func (c *Client) Clear(ctx context.Context) error {
	if err := c.items.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Values returns the distinct values indexed items carry for a field.
func (c *Client) Values(ctx context.Context, field string) ([]string, error) {
	out, err := c.items.FieldValues(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("values: %w", err)
	}
	return out, nil
}

// AddBatch indexes items independently. One failure does not stop the rest.
func (c *Client) AddBatch(ctx context.Context, items []NewItem) []BatchResult {
	inputs := make([]indexuc.AddInput, len(items))
	for i, in := range items {
		inputs[i] = toAddInput(in)
	}
	return fromBatch(c.batch.Add(ctx, inputs))
}

// DeleteBatch removes items independently.
func (c *Client) DeleteBatch(ctx context.Context, ids []string) []BatchResult {
	return fromBatch(c.batch.Remove(ctx, ids))
}

// Export writes every item to w as json, jsonl (ndjson) or csv and returns the
// number written. An empty format selects json.
func (c *Client) Export(ctx context.Context, w io.Writer, format string) (int, error) {
	f, err := archive.ParseFormat(format)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return c.transfer.Export(ctx, w, f)
}

// Import reads an archive from r and adds every record, keeping its ID and
// timestamps. Records succeed or fail independently.
func (c *Client) Import(ctx context.Context, r io.Reader, format string) ([]BatchResult, error) {
	f, err := archive.ParseFormat(format)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	results, err := c.transfer.Import(ctx, r, f)
	if err != nil {
		return nil, err
	}
	return fromBatch(results), nil
}

// ExportFile writes every item to path. An empty format is taken from the file extension.
func (c *Client) ExportFile(ctx context.Context, path, format string) (int, error) {
	return c.transfer.ExportFile(ctx, path, format)
}

// ImportFile adds every record stored in path. An empty format is taken from the file extension.
func (c *Client) ImportFile(ctx context.Context, path, format string) ([]BatchResult, error) {
	results, err := c.transfer.ImportFile(ctx, path, format)
	if err != nil {
		return nil, err
	}
	return fromBatch(results), nil
}

// Query returns a fluent query builder bound to the active schema version.
func (c *Client) Query() *QueryBuilder {
	return newQueryBuilder(c)
}

func toAddInput(in NewItem) indexuc.AddInput {
	return indexuc.AddInput{
		ID:         in.ID,
		Text:       in.Text,
		Descriptor: in.Descriptor,
		Metadata:   in.Metadata,
	}
}

func fromBatch(results []dombatch.Result) []BatchResult {
	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{
			Position: r.Position(),
			ID:       r.ID(),
			OK:       r.Status() == dombatch.StatusOK,
			Err:      r.Err(),
		}
	}
	return out
}
