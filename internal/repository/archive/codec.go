package archive

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"
)

// Fixed CSV columns. Every other header names a descriptor field.
const (
	colID          = "id"
	colText        = "text"
	colMetadata    = "metadata"
	colCreatedAt   = "created_at"
	colUpdatedAt   = "updated_at"
	colContentHash = "content_hash"
)

const maxLine = 16 << 20

// Encode writes recs to w. fields orders the CSV descriptor columns; descriptor
// keys missing from fields get extra columns in name order. JSON formats ignore it.
func Encode(w io.Writer, f Format, recs []Record, fields []string) error {
	switch f {
	case FormatJSON:
		if recs == nil {
			recs = []Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case FormatJSONL:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode %s: %w", r.ID, err)
			}
		}
		return nil
	case FormatCSV:
		return encodeCSV(w, recs, fields)
	default:
		_, err := ParseFormat(string(f))
		return err
	}
}

// Decode reads every record from r. Blank JSON lines are skipped.
func Decode(r io.Reader, f Format) ([]Record, error) {
	switch f {
	case FormatJSON:
		var recs []Record
		if err := json.NewDecoder(r).Decode(&recs); err != nil {
			if errors.Is(err, io.EOF) {
				return []Record{}, nil
			}
			return nil, malformed(f, "document", err)
		}
		return recs, nil
	case FormatJSONL:
		return decodeJSONL(r)
	case FormatCSV:
		return decodeCSV(r)
	default:
		_, err := ParseFormat(string(f))
		return nil, err
	}
}

// AppendLine writes one record as a JSON line.
func AppendLine(w io.Writer, rec Record) error {
	return Encode(w, FormatJSONL, []Record{rec}, nil)
}

func decodeJSONL(r io.Reader) ([]Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	recs := []Record{}
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, malformed(FormatJSONL, "line "+strconv.Itoa(line), err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return recs, nil
}

func csvColumns(recs []Record, fields []string) []string {
	cols := []string{colID, colText}
	cols = append(cols, fields...)
	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f] = struct{}{}
	}
	extra := make(map[string]struct{})
	for _, r := range recs {
		for k := range r.Descriptor {
			if _, ok := known[k]; !ok {
				extra[k] = struct{}{}
			}
		}
	}
	cols = append(cols, slices.Sorted(maps.Keys(extra))...)
	return append(cols, colMetadata, colCreatedAt, colUpdatedAt, colContentHash)
}

func encodeCSV(w io.Writer, recs []Record, fields []string) error {
	cols := csvColumns(recs, fields)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(cols))
	for _, r := range recs {
		meta := r.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode %s metadata: %w", r.ID, err)
		}
		for i, c := range cols {
			switch c {
			case colID:
				row[i] = r.ID
			case colText:
				row[i] = r.Text
			case colMetadata:
				row[i] = string(metaJSON)
			case colCreatedAt:
				row[i] = formatTime(r.CreatedAt)
			case colUpdatedAt:
				row[i] = formatTime(r.UpdatedAt)
			case colContentHash:
				row[i] = r.ContentHash
			default:
				row[i] = r.Descriptor[c]
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, malformed(FormatCSV, "header", err)
	}
	if !slices.Contains(header, colID) || !slices.Contains(header, colText) {
		return nil, malformed(FormatCSV, "header", errors.New("id and text columns are required"))
	}

	recs := []Record{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, malformed(FormatCSV, "row "+strconv.Itoa(len(recs)+1), err)
		}
		rec, err := parseRow(header, row)
		if err != nil {
			return nil, malformed(FormatCSV, "row "+strconv.Itoa(len(recs)+1), err)
		}
		recs = append(recs, rec)
	}
}

func parseRow(header, row []string) (Record, error) {
	var rec Record
	for i, c := range header {
		v := row[i]
		switch c {
		case colID:
			rec.ID = v
		case colText:
			rec.Text = v
		case colMetadata:
			if v == "" {
				continue
			}
			if err := json.Unmarshal([]byte(v), &rec.Metadata); err != nil {
				return Record{}, fmt.Errorf("metadata: %w", err)
			}
		case colCreatedAt, colUpdatedAt:
			t, err := parseTime(v)
			if err != nil {
				return Record{}, fmt.Errorf("%s: %w", c, err)
			}
			if c == colCreatedAt {
				rec.CreatedAt = t
			} else {
				rec.UpdatedAt = t
			}
		case colContentHash:
			rec.ContentHash = v
		default:
			if v == "" {
				continue
			}
			if rec.Descriptor == nil {
				rec.Descriptor = make(map[string]string)
			}
			rec.Descriptor[c] = v
		}
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
