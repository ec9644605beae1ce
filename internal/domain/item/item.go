// Package item defines what the query engine reads from indexed content.
package item

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"strings"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
)

// Item is the read-only view of one queryable item.
type Item interface {
	Descriptor() descriptor.Descriptor
	Text() string
	Metadata() map[string]any
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

// Indexed is the concrete item held by the indexing service.
type Indexed struct {
	id          string
	text        string
	descriptor  descriptor.Descriptor
	metadata    map[string]any
	contentHash string
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an Indexed item. Metadata is copied.
func New(id, text string, d descriptor.Descriptor, metadata map[string]any, createdAt time.Time) Indexed {
	return Indexed{
		id:          id,
		text:        text,
		descriptor:  d,
		metadata:    cloneMeta(metadata),
		contentHash: ContentHash(text),
		createdAt:   createdAt,
		updatedAt:   createdAt,
	}
}

// Reconstruct restores an item from storage without recomputing timestamps.
func Reconstruct(
	id, text string,
	d descriptor.Descriptor,
	metadata map[string]any,
	contentHash string,
	createdAt, updatedAt time.Time,
) Indexed {
	if contentHash == "" {
		contentHash = ContentHash(text)
	}
	return Indexed{
		id:          id,
		text:        text,
		descriptor:  d,
		metadata:    cloneMeta(metadata),
		contentHash: contentHash,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// ID returns the item identifier.
func (it Indexed) ID() string { return it.id }

// Text returns the free text.
func (it Indexed) Text() string { return it.text }

// Descriptor returns the semantic descriptor.
func (it Indexed) Descriptor() descriptor.Descriptor { return it.descriptor }

// Metadata returns a copy of the metadata map.
func (it Indexed) Metadata() map[string]any { return cloneMeta(it.metadata) }

// ContentHash returns the hex SHA-256 of the normalized text.
func (it Indexed) ContentHash() string { return it.contentHash }

// CreatedAt returns the creation time.
func (it Indexed) CreatedAt() time.Time { return it.createdAt }

// UpdatedAt returns the last modification time.
func (it Indexed) UpdatedAt() time.Time { return it.updatedAt }

// WithText returns a copy with new text, touched at now.
func (it Indexed) WithText(text string, now time.Time) Indexed {
	it.text = text
	it.contentHash = ContentHash(text)
	it.updatedAt = now
	return it
}

// WithDescriptor returns a copy with a new descriptor, touched at now.
func (it Indexed) WithDescriptor(d descriptor.Descriptor, now time.Time) Indexed {
	it.descriptor = d
	it.updatedAt = now
	return it
}

// WithMetadata returns a copy with new metadata, touched at now.
func (it Indexed) WithMetadata(m map[string]any, now time.Time) Indexed {
	it.metadata = cloneMeta(m)
	it.updatedAt = now
	return it
}

// ContentHash hashes text after trimming and collapsing whitespace, so
// reformatted copies of the same content collide.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return hex.EncodeToString(sum[:])
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return maps.Clone(m)
}
