package item

import (
	"testing"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
)

func TestNew(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := map[string]any{"author": "ana"}
	d, _ := descriptor.New(map[string]string{"domain": "Science"}, nil)

	it := New("id-1", "Hello  world", d, meta, now)
	meta["author"] = "bob"

	if it.Metadata()["author"] != "ana" {
		t.Error("metadata must be copied on construction")
	}
	it.Metadata()["author"] = "eve"
	if it.Metadata()["author"] != "ana" {
		t.Error("Metadata must return a copy")
	}
	if !it.CreatedAt().Equal(now) || !it.UpdatedAt().Equal(now) {
		t.Error("timestamps not set")
	}
	if it.ContentHash() != ContentHash(" Hello world ") {
		t.Error("content hash must ignore whitespace layout")
	}
}

func TestWithers_ReturnCopies(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	it := New("id", "old", descriptor.Descriptor{}, nil, t0)

	up := it.WithText("new", t1)
	if it.Text() != "old" || up.Text() != "new" {
		t.Error("WithText mutated the original")
	}
	if !up.UpdatedAt().Equal(t1) || !up.CreatedAt().Equal(t0) {
		t.Error("WithText must bump only updated_at")
	}
	if up.ContentHash() == it.ContentHash() {
		t.Error("content hash must follow text")
	}

	d, _ := descriptor.New(map[string]string{"tone": "Formal"}, nil)
	if it.WithDescriptor(d, t1).Descriptor().Len() != 1 || it.Descriptor().Len() != 0 {
		t.Error("WithDescriptor mutated the original")
	}
	if it.WithMetadata(map[string]any{"k": 1}, t1).Metadata()["k"] != 1 {
		t.Error("WithMetadata lost metadata")
	}
}

func TestReconstruct_FillsHash(t *testing.T) {
	it := Reconstruct("id", "text", descriptor.Descriptor{}, nil, "", time.Time{}, time.Time{})
	if it.ContentHash() != ContentHash("text") {
		t.Error("missing hash must be recomputed")
	}
}
