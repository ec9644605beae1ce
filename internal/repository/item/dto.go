package item

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	domitem "github.com/kailas-cloud/semdex/internal/domain/item"
)

// Hash field names of a stored item.
const (
	fieldText        = "text"
	fieldDescriptor  = "descriptor"
	fieldMetadata    = "metadata"
	fieldContentHash = "content_hash"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// buildHashFields flattens an item for HSET. Descriptor and metadata are JSON encoded.
func buildHashFields(it domitem.Indexed) (map[string]string, error) {
	desc, err := json.Marshal(it.Descriptor().Fields())
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}
	meta := it.Metadata()
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return map[string]string{
		fieldText:        it.Text(),
		fieldDescriptor:  string(desc),
		fieldMetadata:    string(metaJSON),
		fieldContentHash: it.ContentHash(),
		fieldCreatedAt:   it.CreatedAt().UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt:   it.UpdatedAt().UTC().Format(time.RFC3339Nano),
	}, nil
}

// parseHashFields restores an item. Stored descriptors are already canonical,
// so New only reclassifies them against the current field set.
func parseHashFields(id string, m map[string]string, fields descriptor.FieldSet) (domitem.Indexed, error) {
	var raw map[string]string
	if s := m[fieldDescriptor]; s != "" {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return domitem.Indexed{}, fmt.Errorf("item %s: decode descriptor: %w", id, err)
		}
	}
	d, err := descriptor.New(raw, fields)
	if err != nil {
		return domitem.Indexed{}, fmt.Errorf("item %s: rebuild descriptor: %w", id, err)
	}

	var meta map[string]any
	if s := m[fieldMetadata]; s != "" {
		if err := json.Unmarshal([]byte(s), &meta); err != nil {
			return domitem.Indexed{}, fmt.Errorf("item %s: decode metadata: %w", id, err)
		}
	}

	created, err := parseTime(m[fieldCreatedAt])
	if err != nil {
		return domitem.Indexed{}, fmt.Errorf("item %s: created_at: %w", id, err)
	}
	updated, err := parseTime(m[fieldUpdatedAt])
	if err != nil {
		return domitem.Indexed{}, fmt.Errorf("item %s: updated_at: %w", id, err)
	}

	return domitem.Reconstruct(id, m[fieldText], d, meta, m[fieldContentHash], created, updated), nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
