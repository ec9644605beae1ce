// Package archive reads and writes indexed items as JSON, JSON lines or CSV,
// to streams, single files, append-only logs and one-file-per-item directories.
package archive

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
	domitem "github.com/kailas-cloud/semdex/internal/domain/item"
)

// Format is an archive encoding.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSONL:
		return "application/x-ndjson"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// ParseFormat resolves a format name. "ndjson" is an alias of jsonl and an
// empty name selects json.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown archive format %q (want json, jsonl, ndjson or csv): %w",
			name, domain.ErrValidation)
	}
}

// FormatFor picks the format for path: name when set, otherwise the file
// extension, otherwise json.
func FormatFor(path, name string) (Format, error) {
	if name != "" {
		return ParseFormat(name)
	}
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Record is the archived form of one item.
type Record struct {
	ID          string            `json:"id"`
	Text        string            `json:"text"`
	Descriptor  map[string]string `json:"descriptor"`
	Metadata    map[string]any    `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ContentHash string            `json:"content_hash,omitempty"`
}

// FromItem converts an indexed item to its archived form.
func FromItem(it domitem.Indexed) Record {
	meta := it.Metadata()
	if meta == nil {
		meta = map[string]any{}
	}
	return Record{
		ID:          it.ID(),
		Text:        it.Text(),
		Descriptor:  it.Descriptor().Fields(),
		Metadata:    meta,
		CreatedAt:   it.CreatedAt().UTC(),
		UpdatedAt:   it.UpdatedAt().UTC(),
		ContentHash: it.ContentHash(),
	}
}

// FromItems converts items in order.
func FromItems(items []domitem.Indexed) []Record {
	out := make([]Record, len(items))
	for i, it := range items {
		out[i] = FromItem(it)
	}
	return out
}

func malformed(f Format, where string, err error) error {
	return fmt.Errorf("decode %s %s: %w: %w", f, where, domain.ErrValidation, err)
}
