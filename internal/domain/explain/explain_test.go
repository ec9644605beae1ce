package explain

import (
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/predicate"
)

func testItem(t *testing.T) item.Indexed {
	t.Helper()
	d, err := descriptor.New(map[string]string{"domain": "Science → Biology", "tone": "Casual"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return item.New("item-1", "Cells are the basic unit of life", d, nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestPredicate(t *testing.T) {
	p := predicate.Or(
		predicate.HierarchyMatches("domain", "Science", false),
		predicate.Not(predicate.FieldEquals("tone", "Formal")),
	)
	want := "ANY OF (domain under 'Science', NOT (tone = 'Formal'))"
	if got := Predicate(p); got != want {
		t.Errorf("Predicate = %q, want %q", got, want)
	}
}

func TestTree(t *testing.T) {
	p := predicate.And(
		predicate.FieldEquals("tone", "Formal"),
		predicate.Or(predicate.MetadataExists("k"), predicate.Not(predicate.True())),
	)
	want := strings.Join([]string{
		"AND:",
		"  • tone = 'Formal'",
		"  OR:",
		"    • metadata['k'] exists",
		"    NOT:",
		"      • always true",
	}, "\n")
	if got := Tree(p); got != want {
		t.Errorf("Tree =\n%s\nwant\n%s", got, want)
	}
}

func TestEvaluate_VisitsEveryLeaf(t *testing.T) {
	it := testItem(t)
	p := predicate.And(
		predicate.FieldEquals("tone", "Formal"),
		predicate.HierarchyMatches("domain", "Science", false),
		predicate.MetadataExists("author"),
	)
	tr := Evaluate(it, p)
	if tr.Matched != p.Matches(it) || tr.Matched {
		t.Fatalf("Matched = %v", tr.Matched)
	}
	if len(tr.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(tr.Steps))
	}
	tone := tr.Steps[1]
	if tone.Result || tone.Actual != "Casual" || !tone.HasActual {
		t.Errorf("tone step = %+v", tone)
	}
	if dom := tr.Steps[2]; !dom.Result || dom.Actual != "Science → Biology" {
		t.Errorf("domain step = %+v", dom)
	}
	if meta := tr.Steps[3]; meta.Result || meta.HasActual {
		t.Errorf("metadata step = %+v", meta)
	}
}

func TestEvaluate_AgreesWithMatches(t *testing.T) {
	it := testItem(t)
	preds := []predicate.Predicate{
		predicate.And(),
		predicate.Or(),
		predicate.Not(predicate.Or()),
		predicate.Or(predicate.FieldEquals("tone", "Formal"), predicate.TextContains("CELLS", false)),
		predicate.And(predicate.HierarchyDepth("domain", 2, 2), predicate.Not(predicate.False())),
	}
	for _, p := range preds {
		if got, want := Evaluate(it, p).Matched, p.Matches(it); got != want {
			t.Errorf("%s: Evaluate = %v, Matches = %v", p, got, want)
		}
	}
}

func TestMatch(t *testing.T) {
	it := testItem(t)
	p := predicate.And(
		predicate.HierarchyMatches("domain", "Science", false),
		predicate.FieldEquals("audience", "Experts"),
	)
	got := Match(it, p)
	want := strings.Join([]string{
		"Item item-1 did NOT match because:",
		"✗ ALL OF",
		"  ✓ domain under 'Science' (actual: 'Science → Biology')",
		"  ✗ audience = 'Experts' (actual: missing)",
	}, "\n")
	if got != want {
		t.Errorf("Match =\n%s\nwant\n%s", got, want)
	}
	if Match(it, p) != got {
		t.Error("Match must be reproducible")
	}
}

func TestMatch_TextPreview(t *testing.T) {
	d, _ := descriptor.New(nil, nil)
	it := item.New("", strings.Repeat("a", 100), d, nil, time.Now())
	got := Match(it, predicate.TextContains("a", true))
	if !strings.HasPrefix(got, "Item matched because:") {
		t.Errorf("header = %q", got)
	}
	if !strings.Contains(got, strings.Repeat("a", 60)+"...") {
		t.Errorf("text not truncated: %q", got)
	}
}

func TestEvaluate_EmptyMetadataIsNotMissing(t *testing.T) {
	d, err := descriptor.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	it := item.New("item-2", "text", d, map[string]any{"note": ""}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := predicate.And(predicate.MetadataExists("note"), predicate.MetadataExists("author"))
	want := strings.Join([]string{
		"✗ ALL OF",
		"  ✓ metadata['note'] exists (actual: '')",
		"  ✗ metadata['author'] exists (actual: missing)",
	}, "\n")
	if got := Evaluate(it, p).String(); got != want {
		t.Errorf("trace =\n%s\nwant\n%s", got, want)
	}
}
