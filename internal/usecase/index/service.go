package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
	"github.com/kailas-cloud/semdex/internal/domain/query"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
	"github.com/kailas-cloud/semdex/internal/domain/validate"
	"github.com/kailas-cloud/semdex/internal/logger"
	"github.com/kailas-cloud/semdex/internal/metrics"
)

// AddInput describes a new item. An empty ID gets a random UUID. A zero
// CreatedAt stamps the item with the current time; restored items carry theirs.
type AddInput struct {
	ID         string
	Text       string
	Descriptor map[string]string
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UpdateInput describes changes to an item. Nil Text or Descriptor keeps the
// current value; a non-nil Descriptor replaces it wholesale. Metadata is merged
// into the current map and a nil value removes its key.
type UpdateInput struct {
	Text       *string
	Descriptor map[string]string
	Metadata   map[string]any
}

// Page is one window of the index in insertion order.
type Page struct {
	Items  []item.Indexed
	Total  int
	Offset int
	Limit  int
}

// Service owns indexed items: descriptor construction, validation on write,
// duplicate detection and paginated reads.
type Service struct {
	repo            Repository
	version         *schema.Version
	validator       *validate.Validator
	validateOnAdd   bool
	allowDuplicates bool
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
	newID           func() string

	// mu serializes writes so the duplicate check and the insert see the same state.
	mu sync.Mutex
}

// New creates an index service bound to one schema version.
func New(repo Repository, version *schema.Version) *Service {
	return &Service{
		repo:            repo,
		version:         version,
		validator:       validate.New(version),
		validateOnAdd:   true,
		defaultPageSize: 20,
		maxPageSize:     100,
		now:             func() time.Time { return time.Now().UTC() },
		newID:           uuid.NewString,
	}
}

// WithValidation toggles complete validation on Add and Update.
func (s *Service) WithValidation(on bool) *Service {
	s.validateOnAdd = on
	return s
}

// WithDuplicates toggles acceptance of text that is already indexed.
func (s *Service) WithDuplicates(allow bool) *Service {
	s.allowDuplicates = allow
	return s
}

// WithPagination configures page size limits.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides ID generation for items added without an ID.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	s.newID = fn
	return s
}

// Version returns the schema version items are validated against.
func (s *Service) Version() *schema.Version { return s.version }

// Add builds, validates and stores a new item.
func (s *Service) Add(ctx context.Context, in AddInput) (item.Indexed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.add(ctx, in)
	metrics.ObserveItemOp("add", err)
	return it, err
}

func (s *Service) add(ctx context.Context, in AddInput) (item.Indexed, error) {
	if err := checkText(in.Text); err != nil {
		return item.Indexed{}, err
	}
	d, err := s.buildDescriptor(in.Descriptor)
	if err != nil {
		return item.Indexed{}, err
	}
	if err := s.checkDuplicate(ctx, "", in.Text); err != nil {
		return item.Indexed{}, err
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.newID()
	}
	it := item.New(id, in.Text, d, in.Metadata, s.now())
	if !in.CreatedAt.IsZero() {
		created := in.CreatedAt.UTC()
		updated := in.UpdatedAt.UTC()
		if updated.Before(created) {
			updated = created
		}
		it = item.Reconstruct(id, in.Text, d, in.Metadata, "", created, updated)
	}
	if err := s.repo.Insert(ctx, it); err != nil {
		return item.Indexed{}, fmt.Errorf("insert item %s: %w", id, err)
	}

	logger.FromContext(ctx).Debug("item added",
		zap.String("id", id),
		zap.String("descriptor", d.String()),
	)
	return it, nil
}

// Get returns an item by ID.
func (s *Service) Get(ctx context.Context, id string) (item.Indexed, error) {
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return item.Indexed{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// Update applies changes to an item and bumps its updated_at. An empty update
// returns the item untouched.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (item.Indexed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.update(ctx, id, in)
	metrics.ObserveItemOp("update", err)
	return it, err
}

func (s *Service) update(ctx context.Context, id string, in UpdateInput) (item.Indexed, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return item.Indexed{}, fmt.Errorf("get item %s: %w", id, err)
	}

	now := s.now()
	next := cur
	changed := false

	if in.Text != nil && *in.Text != cur.Text() {
		if err := checkText(*in.Text); err != nil {
			return item.Indexed{}, err
		}
		if item.ContentHash(*in.Text) != cur.ContentHash() {
			if err := s.checkDuplicate(ctx, id, *in.Text); err != nil {
				return item.Indexed{}, err
			}
		}
		next = next.WithText(*in.Text, now)
		changed = true
	}

	if in.Descriptor != nil {
		d, err := s.buildDescriptor(in.Descriptor)
		if err != nil {
			return item.Indexed{}, err
		}
		if !d.Equal(cur.Descriptor()) {
			next = next.WithDescriptor(d, now)
			changed = true
		}
	}

	if len(in.Metadata) > 0 {
		merged := cur.Metadata()
		if merged == nil {
			merged = make(map[string]any, len(in.Metadata))
		}
		for k, v := range in.Metadata {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		next = next.WithMetadata(merged, now)
		changed = true
	}

	if !changed {
		return cur, nil
	}
	if err := s.repo.Replace(ctx, next); err != nil {
		return item.Indexed{}, fmt.Errorf("replace item %s: %w", id, err)
	}

	logger.FromContext(ctx).Debug("item updated", zap.String("id", id))
	return next, nil
}

// Remove deletes an item.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.repo.Delete(ctx, id)
	metrics.ObserveItemOp("remove", err)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	return nil
}

// List returns one page of items in insertion order. limit 0 selects the
// default page size; larger limits are capped at the maximum.
func (s *Service) List(ctx context.Context, offset, limit int) (Page, error) {
	if offset < 0 {
		return Page{}, invalid(fmt.Sprintf("offset must be non-negative, got %d", offset))
	}
	if limit < 0 {
		return Page{}, invalid(fmt.Sprintf("limit must be non-negative, got %d", limit))
	}
	if limit == 0 {
		limit = s.defaultPageSize
	}
	limit = min(limit, s.maxPageSize)

	total, err := s.repo.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count items: %w", err)
	}
	items, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return Page{}, fmt.Errorf("list items: %w", err)
	}
	return Page{Items: items, Total: total, Offset: offset, Limit: limit}, nil
}

// Count returns the number of indexed items.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// Snapshot returns every item in insertion order. The slice is the caller's to keep;
// later writes do not show through it.
func (s *Service) Snapshot(ctx context.Context) ([]item.Indexed, error) {
	items, err := s.repo.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("snapshot items: %w", err)
	}
	return items, nil
}

// FieldValues returns the distinct values indexed items carry for a field, sorted.
func (s *Service) FieldValues(ctx context.Context, field string) ([]string, error) {
	name := normalize.FieldName(field)
	if name == "" {
		return nil, invalid("field name is required")
	}
	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, it := range items {
		if v, ok := it.Descriptor().Get(name); ok {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	slices.Sort(out)
	return out, nil
}

// Distribution counts field values across the whole index.
func (s *Service) Distribution(ctx context.Context, fields ...string) ([]query.FieldDistribution, error) {
	items, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return query.Distribution(items, fields...), nil
}

// Validate checks raw descriptor fields against the active version without storing anything.
func (s *Service) Validate(raw map[string]string, partial bool) validate.Result {
	res := s.validator.ValidateFields(raw, partial)
	metrics.ObserveValidation(res.Valid())
	return res
}

// Clear removes every item.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	logger.FromContext(ctx).Info("index cleared")
	return nil
}

func (s *Service) buildDescriptor(raw map[string]string) (descriptor.Descriptor, error) {
	d, err := descriptor.New(raw, s.version)
	if err != nil {
		return descriptor.Descriptor{}, fmt.Errorf("build descriptor: %w", err)
	}
	if !s.validateOnAdd {
		return d, nil
	}
	res := s.validator.ValidateDescriptor(d, false)
	metrics.ObserveValidation(res.Valid())
	if err := validate.Strict(res); err != nil {
		return descriptor.Descriptor{}, err
	}
	return d, nil
}

// checkDuplicate rejects text already indexed under an ID other than self.
func (s *Service) checkDuplicate(ctx context.Context, self, text string) error {
	if s.allowDuplicates {
		return nil
	}
	id, found, err := s.repo.FindByContentHash(ctx, item.ContentHash(text))
	if err != nil {
		return fmt.Errorf("find by content: %w", err)
	}
	if found && id != self {
		return fmt.Errorf("text already indexed as %q: %w", id, domain.ErrDuplicateContent)
	}
	return nil
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("text must not be empty")
	}
	return nil
}

func invalid(msg string) error {
	return &domain.ValidationError{Errors: []string{msg}}
}

// IsClientError reports whether err is caused by the caller's input rather than storage.
func IsClientError(err error) bool {
	for _, target := range []error{
		domain.ErrValidation,
		domain.ErrNormalization,
		domain.ErrDuplicateContent,
		domain.ErrAlreadyExists,
		domain.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
