package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	domitem "github.com/kailas-cloud/semdex/internal/domain/item"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func testRecords() []Record {
	return []Record{
		{
			ID:          "a",
			Text:        `Cells, "membranes" and <life>`,
			Descriptor:  map[string]string{"domain": "Science → Biology", "tone": "Formal"},
			Metadata:    map[string]any{"source": "wiki", "n": 2.5},
			CreatedAt:   t0,
			UpdatedAt:   t1,
			ContentHash: "h1",
		},
		{
			ID:         "b",
			Text:       "multi\nline",
			Descriptor: map[string]string{"domain": "Arts", "mood": "Calm"},
			Metadata:   map[string]any{},
			CreatedAt:  t1,
			UpdatedAt:  t1,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatJSON},
		{"JSON", FormatJSON},
		{"jsonl", FormatJSONL},
		{"ndjson", FormatJSONL},
		{" csv ", FormatCSV},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("xml: err = %v, want ErrValidation", err)
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path, name string
		want       Format
	}{
		{"items.csv", "", FormatCSV},
		{"items.ndjson", "", FormatJSONL},
		{"items", "", FormatJSON},
		{"items.csv", "jsonl", FormatJSONL},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.path, tt.name)
		if err != nil || got != tt.want {
			t.Errorf("FormatFor(%q, %q) = %q, %v; want %q", tt.path, tt.name, got, err, tt.want)
		}
	}
	if _, err := FormatFor("items.txt", ""); err == nil {
		t.Error("expected error for .txt")
	}
}

func TestEncodeDecode_PreservesRecords(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatJSONL, FormatCSV} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, f, testRecords(), []string{"domain", "tone"}); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(&buf, f)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if want := testRecords(); !reflect.DeepEqual(got, want) {
				t.Errorf("records =\n%+v\nwant\n%+v", got, want)
			}
		})
	}
}

func TestEncode_JSONKeepsHTMLAndUnicode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatJSONL, testRecords()[:1], nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "<life>") || !strings.Contains(out, "Science → Biology") {
		t.Errorf("escaped output: %s", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("want one line, got %q", out)
	}
}

func TestEncode_CSVColumns(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, FormatCSV, testRecords(), []string{"tone", "domain"}); err != nil {
		t.Fatal(err)
	}
	header, _, _ := strings.Cut(buf.String(), "\n")
	want := "id,text,tone,domain,mood,metadata,created_at,updated_at,content_hash"
	if header != want {
		t.Errorf("header = %q, want %q", header, want)
	}
}

func TestDecode_Empty(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatJSONL, FormatCSV} {
		recs, err := Decode(strings.NewReader(""), f)
		if err != nil || recs == nil || len(recs) != 0 {
			t.Errorf("%s: Decode(\"\") = %v, %v", f, recs, err)
		}
	}
}

func TestDecode_SkipsBlankLines(t *testing.T) {
	in := "\n{\"id\":\"a\",\"text\":\"x\"}\n   \n{\"id\":\"b\",\"text\":\"y\"}\n"
	recs, err := Decode(strings.NewReader(in), FormatJSONL)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != "a" || recs[1].ID != "b" {
		t.Errorf("recs = %+v", recs)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		f    Format
		in   string
		want string
	}{
		{"json object", FormatJSON, `{"id":"a"}`, "document"},
		{"jsonl line", FormatJSONL, "{\"id\":\"a\"}\n{oops}\n", "line 2"},
		{"csv no text", FormatCSV, "id,domain\na,Arts\n", "header"},
		{"csv bad metadata", FormatCSV, "id,text,metadata\na,x,{nope\n", "row 1"},
		{"csv bad time", FormatCSV, "id,text,created_at\na,x,yesterday\n", "row 1"},
		{"csv short row", FormatCSV, "id,text,tone\na,x\n", "row 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in), tt.f)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFromItem(t *testing.T) {
	d, err := descriptor.New(map[string]string{"domain": "Arts"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	it := domitem.Reconstruct("x", "text", d, nil, "", t0, t1)
	rec := FromItem(it)
	if rec.ID != "x" || rec.Descriptor["domain"] != "Arts" || rec.ContentHash != it.ContentHash() {
		t.Errorf("rec = %+v", rec)
	}
	if rec.Metadata == nil || !rec.CreatedAt.Equal(t0) || !rec.UpdatedAt.Equal(t1) {
		t.Errorf("rec = %+v", rec)
	}
}

func TestSaveLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.jsonl")
	if err := SaveFile(path, FormatJSONL, testRecords(), nil); err != nil {
		t.Fatal(err)
	}
	extra := Record{ID: "c", Text: "appended", CreatedAt: t1, UpdatedAt: t1}
	if err := AppendFile(path, extra); err != nil {
		t.Fatal(err)
	}
	recs, err := LoadFile(path, FormatJSONL)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[2].ID != "c" || recs[2].Text != "appended" {
		t.Errorf("recs = %+v", recs)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), FormatJSON); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}
}

func TestAppendFile_Creates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	if err := AppendFile(path, Record{ID: "a", Text: "x"}); err != nil {
		t.Fatal(err)
	}
	recs, err := LoadFile(path, FormatJSONL)
	if err != nil || len(recs) != 1 {
		t.Fatalf("LoadFile = %v, %v", recs, err)
	}
}

func TestSaveLoadDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "items")
	recs := testRecords()
	recs = append(recs, Record{ID: "dir/slash", Text: "escaped", CreatedAt: t0})
	if err := SaveDir(dir, recs); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dir%2Fslash.json")); err != nil {
		t.Errorf("escaped file: %v", err)
	}

	got, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if want := []string{"a", "dir/slash", "b"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}

	// Saving a smaller set drops stale item files.
	if err := SaveDir(dir, recs[:1]); err != nil {
		t.Fatal(err)
	}
	got, err = LoadDir(dir)
	if err != nil || len(got) != 1 || got[0].ID != "a" {
		t.Errorf("after resave = %+v, %v", got, err)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	recs, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil || len(recs) != 0 {
		t.Errorf("LoadDir = %v, %v", recs, err)
	}
}
