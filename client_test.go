package semdex

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	domainYAML = `version: v1
required: true
values:
  - Science:
      - Biology
      - Physics
  - Arts
`
	toneYAML = `version: v1
values:
  - Formal
  - Casual
`
)

func writeSchema(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "v1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"domain.yaml": domainYAML, "tone.yaml": toneYAML} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(append([]Option{WithSchemaDir(writeSchema(t))}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func seed(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()
	for _, in := range []NewItem{
		{ID: "a", Text: "Cell membranes", Descriptor: map[string]string{"domain": "Science > Biology", "tone": "Formal"}},
		{ID: "b", Text: "Quantum tunnelling", Descriptor: map[string]string{"domain": "Science/Physics", "tone": "Casual"}},
		{ID: "c", Text: "Renaissance painting", Descriptor: map[string]string{"domain": "Arts"}},
		{ID: "d", Text: "Lab safety", Descriptor: map[string]string{"domain": "Science"}, Metadata: map[string]any{"rank": 1}},
	} {
		if _, err := c.Add(ctx, in); err != nil {
			t.Fatalf("Add(%s): %v", in.ID, err)
		}
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(
		WithSchemaDir(writeSchema(t)),
		optionFunc(func(c *clientConfig) { c.driver = "unknown" }),
	)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNew_SchemaErrors(t *testing.T) {
	if _, err := New(WithSchemaDir(filepath.Join(t.TempDir(), "missing"))); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("missing dir: expected ErrInvalidSchema, got %v", err)
	}
	if _, err := New(WithSchemaDir(writeSchema(t)), WithSchemaVersion("v9")); err == nil {
		t.Error("expected error for unknown version")
	}
}

func TestCreateStore_NoAddress(t *testing.T) {
	cfg := defaultConfig()
	cfg.driver = "redis"
	if _, err := createStore(cfg); err == nil {
		t.Fatal("expected error when no address provided")
	}
}

func TestClient_Schema(t *testing.T) {
	c := newTestClient(t)

	if c.SchemaVersion() != "v1" {
		t.Errorf("expected v1, got %s", c.SchemaVersion())
	}
	if got := strings.Join(c.Fields(), ","); got != "domain,tone" {
		t.Errorf("fields = %s", got)
	}
	opts, err := c.Options("Domain")
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	want := []string{"Science", "Science → Biology", "Science → Physics", "Arts"}
	if strings.Join(opts, "|") != strings.Join(want, "|") {
		t.Errorf("options = %v, want %v", opts, want)
	}
	if _, err := c.Options("color"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_NormalizeValidate(t *testing.T) {
	c := newTestClient(t)

	got, err := c.Normalize("Science->Biology")
	if err != nil || got != "Science → Biology" {
		t.Errorf("Normalize = %q, %v", got, err)
	}
	if _, err := c.Normalize("  "); !errors.Is(err, ErrNormalization) {
		t.Errorf("expected ErrNormalization, got %v", err)
	}

	res := c.Validate(map[string]string{"domain": "Science > Biolgy"}, false)
	if res.Valid() {
		t.Fatal("expected invalid result")
	}
	fe, ok := res.ErrorFor("domain")
	if !ok {
		t.Fatalf("expected domain error, got %+v", res.Errors)
	}
	if fe.Segment != "Biolgy" {
		t.Errorf("segment = %q", fe.Segment)
	}

	if res := c.Validate(map[string]string{"tone": "Formal"}, true); !res.Valid() {
		t.Errorf("partial validation should pass: %+v", res.Errors)
	}
}

func TestClient_Lifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	_, err := c.Add(ctx, NewItem{
		Text:       "Protein folding",
		Descriptor: map[string]string{"domain": "science -> biology"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("lowercase label should fail validation, got %v", err)
	}

	it, err := c.Add(ctx, NewItem{
		Text:       "Protein folding",
		Descriptor: map[string]string{"domain": "Science -> Biology"},
		Metadata:   map[string]any{"source": "wiki"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if it.ID == "" {
		t.Error("expected generated ID")
	}
	if it.Descriptor["domain"] != "Science → Biology" {
		t.Errorf("descriptor not normalized: %v", it.Descriptor)
	}

	got, err := c.Get(ctx, it.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "Protein folding" || got.Metadata["source"] != "wiki" {
		t.Errorf("unexpected item %+v", got)
	}

	text := "Protein misfolding"
	upd, err := c.Update(ctx, it.ID, ItemUpdate{Text: &text, Metadata: map[string]any{"source": nil}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if upd.Text != text {
		t.Errorf("text = %q", upd.Text)
	}
	if _, ok := upd.Metadata["source"]; ok {
		t.Error("nil metadata value should remove the key")
	}
	if upd.UpdatedAt.Before(upd.CreatedAt) {
		t.Error("updated_at before created_at")
	}

	if err := c.Delete(ctx, it.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := c.Delete(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestClient_Duplicates(t *testing.T) {
	ctx := context.Background()
	in := NewItem{Text: "Same text", Descriptor: map[string]string{"domain": "Arts"}}

	c := newTestClient(t)
	if _, err := c.Add(ctx, in); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := c.Add(ctx, in); !errors.Is(err, ErrDuplicateContent) {
		t.Errorf("expected ErrDuplicateContent, got %v", err)
	}

	lenient := newTestClient(t, WithDuplicates(true))
	for range 2 {
		if _, err := lenient.Add(ctx, in); err != nil {
			t.Fatalf("Add with duplicates allowed: %v", err)
		}
	}
}

func TestClient_WithoutValidation(t *testing.T) {
	c := newTestClient(t, WithValidation(false))
	_, err := c.Add(context.Background(), NewItem{
		Text:       "Anything",
		Descriptor: map[string]string{"domain": "Cooking"},
	})
	if err != nil {
		t.Fatalf("Add without validation: %v", err)
	}
}

func TestClient_ListAndClear(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	page, err := c.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 2 || page.Items[0].ID != "b" {
		t.Errorf("unexpected page %+v", page)
	}
	if _, err := c.List(ctx, -1, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	vals, err := c.Values(ctx, "tone")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if strings.Join(vals, ",") != "Casual,Formal" {
		t.Errorf("values = %v", vals)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := c.Count(ctx); n != 0 {
		t.Errorf("expected empty index, got %d", n)
	}
}

func TestClient_Batch(t *testing.T) {
	c := newTestClient(t, WithMaxBatchSize(3))
	ctx := context.Background()

	results := c.AddBatch(ctx, []NewItem{
		{ID: "x", Text: "One", Descriptor: map[string]string{"domain": "Arts"}},
		{ID: "y", Text: "Two", Descriptor: map[string]string{"domain": "Cooking"}},
		{ID: "z", Text: "Three", Descriptor: map[string]string{"domain": "Science"}},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].OK || results[1].OK || !results[2].OK {
		t.Errorf("unexpected results %+v", results)
	}
	if !errors.Is(results[1].Err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", results[1].Err)
	}

	del := c.DeleteBatch(ctx, []string{"x", "missing"})
	if !del[0].OK || del[1].OK || !errors.Is(del[1].Err, ErrNotFound) {
		t.Errorf("unexpected delete results %+v", del)
	}

	over := c.AddBatch(ctx, make([]NewItem, 4))
	for _, r := range over {
		if r.OK {
			t.Errorf("oversized batch entry %d should fail", r.Position)
		}
	}
}

func TestClient_Query(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	tests := []struct {
		name  string
		build func(*QueryBuilder)
		want  []string
	}{
		{"no filter", func(*QueryBuilder) {}, []string{"a", "b", "c", "d"}},
		{"under", func(q *QueryBuilder) { q.Where(Under("domain", "Science")) }, []string{"a", "b", "d"}},
		{"exactly", func(q *QueryBuilder) { q.Where(Exactly("domain", "Science")) }, []string{"d"}},
		{"and", func(q *QueryBuilder) {
			q.Where(Under("domain", "Science")).Where(Field("tone", "Casual"))
		}, []string{"b"}},
		{"any of", func(q *QueryBuilder) {
			q.AnyOf(Field("domain", "Arts"), Field("tone", "Formal"))
		}, []string{"a", "c"}},
		{"not", func(q *QueryBuilder) { q.Where(Not(Under("domain", "Science"))) }, []string{"c"}},
		{"depth", func(q *QueryBuilder) { q.Where(Depth("domain", 2, -1)) }, []string{"a", "b"}},
		{"text", func(q *QueryBuilder) { q.Where(TextContains("QUANTUM", false)) }, []string{"b"}},
		{"metadata", func(q *QueryBuilder) { q.Where(Metadata("rank", 1.0)) }, []string{"d"}},
		{"custom", func(q *QueryBuilder) {
			q.Where(Custom(func(it Item) bool { return strings.HasPrefix(it.Text, "L") }, "text starts with L"))
		}, []string{"d"}},
		{"sorted", func(q *QueryBuilder) { q.OrderBy("text", true) }, []string{"c", "b", "d", "a"}},
		{"paged", func(q *QueryBuilder) { q.OrderBy("text", false).Offset(1).Limit(2) }, []string{"d", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := c.Query()
			tt.build(q)
			res, err := q.Do(ctx)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if got := ids(res.Items); got != strings.Join(tt.want, ",") {
				t.Errorf("got %s, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_QueryTotalsAndCount(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	res, err := c.Query().Where(Under("domain", "Science")).Limit(1).Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Total != 3 || len(res.Items) != 1 {
		t.Errorf("total = %d, items = %d", res.Total, len(res.Items))
	}
	if res.Explanation == "" {
		t.Error("expected explanation")
	}

	n, err := c.Query().Where(Field("domain", "Arts")).Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}

	dist, err := c.Query().Where(Under("domain", "Science")).Distribution(ctx, "tone")
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	if len(dist) != 1 || len(dist[0].Values) != 2 {
		t.Errorf("unexpected distribution %+v", dist)
	}
}

func TestClient_QueryHugeLimit(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)

	res, err := c.Query().Offset(1).Limit(math.MaxInt).Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.Total != 4 || len(res.Items) != 3 || res.Items[0].ID != "b" {
		t.Errorf("total = %d, items = %+v", res.Total, res.Items)
	}
}

func TestClient_ExportImport(t *testing.T) {
	src := newTestClient(t)
	seed(t, src)
	ctx := context.Background()

	var buf bytes.Buffer
	n, err := src.Export(ctx, &buf, "ndjson")
	if err != nil || n != 4 {
		t.Fatalf("Export = %d, %v", n, err)
	}

	dst := newTestClient(t)
	results, err := dst.Import(ctx, &buf, "jsonl")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	for _, r := range results {
		if !r.OK {
			t.Errorf("record %d (%s): %v", r.Position, r.ID, r.Err)
		}
	}
	want, _ := src.Get(ctx, "d")
	got, err := dst.Get(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.Metadata["rank"] != 1.0 {
		t.Errorf("got %+v, want %+v", got, want)
	}

	path := filepath.Join(t.TempDir(), "items.csv")
	if n, err := dst.ExportFile(ctx, path, ""); err != nil || n != 4 {
		t.Fatalf("ExportFile = %d, %v", n, err)
	}
	again := newTestClient(t)
	results, err = again.ImportFile(ctx, path, "")
	if err != nil || len(results) != 4 {
		t.Fatalf("ImportFile = %v, %v", results, err)
	}

	if _, err := src.Export(ctx, &buf, "xml"); !errors.Is(err, ErrValidation) {
		t.Errorf("xml: err = %v", err)
	}
}

func TestClient_QueryRejected(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		build func(*QueryBuilder)
	}{
		{"unknown field", func(q *QueryBuilder) { q.Where(Field("color", "red")) }},
		{"unknown value", func(q *QueryBuilder) { q.Where(Field("domain", "Science > Biolgy")) }},
		{"empty in", func(q *QueryBuilder) { q.Where(FieldIn("tone")) }},
		{"bad depth", func(q *QueryBuilder) { q.Where(Depth("domain", 3, 1)) }},
		{"negative offset", func(q *QueryBuilder) { q.Offset(-1) }},
		{"nil custom", func(q *QueryBuilder) { q.Where(Custom(nil, "nothing")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := c.Query()
			tt.build(q)
			_, err := q.Do(ctx)
			var qe *QueryError
			if !errors.As(err, &qe) {
				t.Fatalf("expected *QueryError, got %v", err)
			}
			if !errors.Is(err, ErrQuery) {
				t.Errorf("expected ErrQuery, got %v", err)
			}
		})
	}
}

func TestClient_QueryCustomFields(t *testing.T) {
	c := newTestClient(t, WithValidation(false))
	ctx := context.Background()
	if _, err := c.Add(ctx, NewItem{ID: "p", Text: "Pasta", Descriptor: map[string]string{"domain": "Arts", "cuisine": "Italian"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	res, err := c.Query().AllowCustomFields("cuisine").Where(Field("cuisine", "Italian")).Do(ctx)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if ids(res.Items) != "p" {
		t.Errorf("got %s", ids(res.Items))
	}
}

func TestClient_Explain(t *testing.T) {
	c := newTestClient(t)
	seed(t, c)
	ctx := context.Background()

	q := c.Query().Where(Under("domain", "Science")).Where(Field("tone", "Formal"))

	ex, err := q.Explain(ctx, "a")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if !ex.Matched || !ex.Trace.Matched || ex.Text == "" {
		t.Errorf("unexpected explanation %+v", ex)
	}

	ex, err = q.Explain(ctx, "b")
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if ex.Matched {
		t.Error("item b should not match")
	}
	if len(ex.Trace.Steps) < 3 {
		t.Errorf("expected a step per node, got %d", len(ex.Trace.Steps))
	}

	if _, err := q.Explain(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func ids(items []Item) string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return strings.Join(out, ",")
}
