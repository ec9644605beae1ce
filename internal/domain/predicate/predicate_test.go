package predicate

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/descriptor"
	"github.com/kailas-cloud/semdex/internal/domain/item"
	"github.com/kailas-cloud/semdex/internal/domain/schema"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newItem(t *testing.T, fields map[string]string, text string, meta map[string]any) item.Indexed {
	t.Helper()
	d, err := descriptor.New(fields, nil)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	return item.New("id", text, d, meta, t0)
}

func TestHierarchyMatches(t *testing.T) {
	ref := HierarchyMatches("domain", "A->B", false)
	tests := []struct {
		value string
		want  bool
	}{
		{"A → B", true},
		{"A → B → C", true},
		{"A", false},
		{"A → X", false},
		{"A → Bee", false},
	}
	for _, tt := range tests {
		it := newItem(t, map[string]string{"domain": tt.value}, "", nil)
		if got := ref.Matches(it); got != tt.want {
			t.Errorf("under 'A → B' on %q = %v, want %v", tt.value, got, tt.want)
		}
	}

	exact := HierarchyMatches("domain", "A → B", true)
	if exact.Matches(newItem(t, map[string]string{"domain": "A → B → C"}, "", nil)) {
		t.Error("exact must not match descendants")
	}
	if HierarchyMatches("domain", "A", false).Matches(newItem(t, nil, "", nil)) {
		t.Error("missing field must not match")
	}
}

func TestScenario_ScienceTree(t *testing.T) {
	it := newItem(t, map[string]string{"domain": "Science → Biology"}, "", nil)
	if !HierarchyMatches("domain", "Science", false).Matches(it) {
		t.Error("Science must match Science → Biology")
	}
	if HierarchyMatches("domain", "Science→Physics", false).Matches(it) {
		t.Error("Science → Physics must not match Science → Biology")
	}
}

func TestFieldEquals_SpellingIndependent(t *testing.T) {
	a := newItem(t, map[string]string{"domain": "Science->Biology"}, "", nil)
	b := newItem(t, map[string]string{"domain": "Science  →  Biology"}, "", nil)
	for _, p := range []Predicate{FieldEquals("domain", "Science->Biology"), FieldEquals("Domain", "Science / Biology")} {
		if !p.Matches(a) || !p.Matches(b) {
			t.Errorf("%s must match both spellings", p)
		}
	}
}

func TestFieldInAndStartsWith(t *testing.T) {
	it := newItem(t, map[string]string{"tone": "Formal", "domain": "Science → Biology"}, "", nil)
	in := FieldIn("tone", "Casual", "Formal", "Formal")
	if !in.Matches(it) {
		t.Error("FieldIn must match")
	}
	if got := in.Values(); !slices.Equal(got, []string{"Casual", "Formal"}) {
		t.Errorf("Values = %v", got)
	}
	if FieldIn("tone", "Casual").Matches(it) {
		t.Error("FieldIn must not match")
	}
	if !FieldStartsWith("domain", "Science → Bio").Matches(it) {
		t.Error("FieldStartsWith must match a character prefix")
	}
}

func TestHierarchyDepth(t *testing.T) {
	it := newItem(t, map[string]string{"domain": "A → B → C"}, "", nil)
	tests := []struct {
		p    Predicate
		want bool
	}{
		{HierarchyDepth("domain", 1, 3), true},
		{HierarchyDepth("domain", 3, 3), true},
		{HierarchyDepth("domain", 1, 2), false},
		{MinDepth("domain", 4), false},
		{MaxDepth("domain", 3), true},
		{HierarchyDepth("domain", Unbounded, Unbounded), true},
	}
	for _, tt := range tests {
		if got := tt.p.Matches(it); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestTextContains(t *testing.T) {
	it := newItem(t, nil, "Cell Biology basics", nil)
	if !TextContains("biology", false).Matches(it) {
		t.Error("case-insensitive must match")
	}
	if TextContains("biology", true).Matches(it) {
		t.Error("case-sensitive must not match")
	}
	long := TextMatches(func(s string) bool { return len(s) > 10 }, "is longer than 10 characters")
	if !long.Matches(it) {
		t.Error("TextMatches must call the matcher")
	}
}

func TestMetadata(t *testing.T) {
	it := newItem(t, nil, "", map[string]any{"views": 10, "author": "ana", "tags": []string{"a"}})
	tests := []struct {
		p    Predicate
		want bool
	}{
		{MetadataEquals("views", 10.0), true},
		{MetadataEquals("views", int64(10)), true},
		{MetadataEquals("views", "10"), false},
		{MetadataEquals("author", "ana"), true},
		{MetadataEquals("tags", []string{"a"}), true},
		{MetadataEquals("missing", nil), false},
		{MetadataExists("author"), true},
		{MetadataExists("missing"), false},
	}
	for _, tt := range tests {
		if got := tt.p.Matches(it); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestTimestamps(t *testing.T) {
	it := newItem(t, nil, "", nil)
	tests := []struct {
		p    Predicate
		want bool
	}{
		{CreatedAfter(t0, false), false},
		{CreatedAfter(t0, true), true},
		{CreatedAfter(t0.Add(-time.Hour), false), true},
		{CreatedBefore(t0, false), false},
		{CreatedBefore(t0, true), true},
		{UpdatedBefore(t0.Add(time.Hour), false), true},
		{UpdatedAfter(t0.Add(time.Hour), true), false},
	}
	for _, tt := range tests {
		if got := tt.p.Matches(it); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestCombinators_VacuousIdentities(t *testing.T) {
	it := newItem(t, nil, "", nil)
	if !And().Matches(it) {
		t.Error("And() must be true")
	}
	if Or().Matches(it) {
		t.Error("Or() must be false")
	}
	if Not(And()).Matches(it) {
		t.Error("Not(And()) must be false")
	}
	if !Not(Or()).Matches(it) {
		t.Error("Not(Or()) must be true")
	}
}

func TestCombinators_ShortCircuit(t *testing.T) {
	it := newItem(t, nil, "", nil)
	calls := 0
	counter := Custom(func(item.Item) bool { calls++; return true }, "counted")

	And(False(), counter).Matches(it)
	Or(True(), counter).Matches(it)
	if calls != 0 {
		t.Errorf("short-circuit failed, %d calls", calls)
	}
	And(True(), counter).Matches(it)
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestCombinators_DoNotAliasInput(t *testing.T) {
	children := []Predicate{True(), True()}
	p := And(children...)
	children[0] = False()
	it := newItem(t, nil, "", nil)
	if !p.Matches(it) {
		t.Error("And must copy its children")
	}
}

func TestLeavesAndFields(t *testing.T) {
	p := And(
		FieldEquals("tone", "Formal"),
		Or(HierarchyMatches("domain", "Science", false), Not(TextContains("x", false))),
		FieldEquals("tone", "Formal"),
	)
	if got := len(Leaves(p)); got != 4 {
		t.Errorf("Leaves = %d", got)
	}
	if got := Fields(p); !slices.Equal(got, []string{"domain", "tone"}) {
		t.Errorf("Fields = %v", got)
	}
}

func TestPhrase(t *testing.T) {
	tests := []struct {
		p    Predicate
		want string
	}{
		{FieldEquals("Tone", "Formal"), "tone = 'Formal'"},
		{FieldIn("tone", "B", "A"), "tone in ['A', 'B']"},
		{HierarchyMatches("domain", "Science->Biology", false), "domain under 'Science → Biology'"},
		{HierarchyMatches("domain", "Science", true), "domain is exactly 'Science'"},
		{HierarchyDepth("domain", 1, 2), "domain depth between 1 and 2"},
		{MinDepth("domain", 2), "domain depth at least 2"},
		{MaxDepth("domain", 2), "domain depth at most 2"},
		{TextContains("cell", false), "text contains 'cell' (case-insensitive)"},
		{MetadataEquals("author", "ana"), "metadata['author'] = 'ana'"},
		{MetadataEquals("views", 3), "metadata['views'] = 3"},
		{MetadataExists("author"), "metadata['author'] exists"},
		{CreatedAfter(t0, true), "created on or after 2024-03-01T12:00:00Z"},
		{UpdatedBefore(t0, false), "updated before 2024-03-01T12:00:00Z"},
		{Custom(func(item.Item) bool { return true }, "is popular"), "is popular"},
		{
			And(FieldEquals("tone", "Formal"), Or(True(), Not(False()))),
			"ALL OF (tone = 'Formal', ANY OF (always true, NOT (always false)))",
		},
	}
	for _, tt := range tests {
		if got := tt.p.Phrase(); got != tt.want {
			t.Errorf("Phrase = %q, want %q", got, tt.want)
		}
	}
}

func TestPhrase_EveryLeafOnce(t *testing.T) {
	p := And(
		FieldEquals("tone", "Formal"),
		Or(FieldEquals("tone", "Formal"), MetadataExists("k")),
		Not(TextContains("zz", true)),
	)
	phrase := p.Phrase()
	for _, leaf := range Leaves(p) {
		want := 1
		if leaf.Kind() == KindFieldEquals {
			want = 2
		}
		if got := strings.Count(phrase, leaf.LeafPhrase()); got != want {
			t.Errorf("%q appears %d times in %q, want %d", leaf.LeafPhrase(), got, phrase, want)
		}
	}
}

func testVersion(t *testing.T) *schema.Version {
	t.Helper()
	dom, err := schema.NewField("domain", true, "",
		schema.NewNode("Science", schema.NewNode("Biology"), schema.NewNode("Physics")))
	if err != nil {
		t.Fatal(err)
	}
	v, err := schema.NewVersion("v1", dom)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestCheck(t *testing.T) {
	v := testVersion(t)
	tests := []struct {
		name    string
		p       Predicate
		opts    []CheckOption
		wantErr bool
	}{
		{"valid", HierarchyMatches("domain", "Science", false), []CheckOption{WithSchema(v)}, false},
		{"no schema accepts any field", FieldEquals("whatever", "x"), nil, false},
		{"zero", Predicate{}, nil, true},
		{"nested zero", And(True(), Not(Predicate{})), nil, true},
		{"min > max", HierarchyDepth("domain", 3, 1), nil, true},
		{"negative bound", HierarchyDepth("domain", -2, 1), nil, true},
		{"empty field", FieldEquals(" ", "x"), nil, true},
		{"bad operand", FieldEquals("domain", "a //"), nil, true},
		{"empty in", FieldIn("domain"), nil, true},
		{"nil custom", Custom(nil, "x"), nil, true},
		{"nil matcher", TextMatches(nil, "x"), nil, true},
		{"empty metadata key", MetadataExists(""), nil, true},
		{"zero time", CreatedAfter(time.Time{}, false), nil, true},
		{"unknown field", FieldEquals("domian", "Science"), []CheckOption{WithSchema(v)}, true},
		{"allowed custom", FieldEquals("source", "blog"), []CheckOption{WithSchema(v), AllowCustomFields("Source")}, false},
		{"value not in schema", FieldIn("domain", "Science → Chemistry"), []CheckOption{WithSchema(v)}, true},
		{"prefix not validated", FieldStartsWith("domain", "Sci"), []CheckOption{WithSchema(v)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.p, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrQuery) {
				t.Errorf("error %v does not wrap ErrQuery", err)
			}
		})
	}
}

func TestCheck_Suggestions(t *testing.T) {
	err := Check(FieldEquals("domain", "Science → Biolgy"), WithSchema(testVersion(t)))
	var qe *domain.QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("error = %v", err)
	}
	if len(qe.Suggestions) == 0 || qe.Suggestions[0] != "Science → Biology" {
		t.Errorf("Suggestions = %v", qe.Suggestions)
	}

	err = Check(FieldEquals("domian", "Science"), WithSchema(testVersion(t)))
	if !errors.As(err, &qe) || qe.Field != "domian" || qe.Suggestions[0] != "domain" {
		t.Errorf("error = %v", err)
	}
}

func TestInvalidNeverMatches(t *testing.T) {
	it := newItem(t, map[string]string{"domain": "A"}, "", nil)
	if HierarchyDepth("domain", 3, 1).Matches(it) {
		t.Error("invalid predicate matched")
	}
}

func TestEval_ReportsActual(t *testing.T) {
	it := newItem(t, map[string]string{"domain": "Science → Physics"}, "", map[string]any{"n": 2.5})
	ok, actual, present := HierarchyMatches("domain", "Science → Biology", false).Eval(it)
	if ok || actual != "Science → Physics" || !present {
		t.Errorf("Eval = %v, %q, %v", ok, actual, present)
	}
	if _, actual, _ := MetadataEquals("n", 2.5).Eval(it); actual != "2.5" {
		t.Errorf("actual = %q", actual)
	}
}

func TestEval_EmptyValueIsPresent(t *testing.T) {
	it := newItem(t, map[string]string{"domain": "A"}, "", map[string]any{"note": ""})
	ok, actual, present := MetadataEquals("note", "").Eval(it)
	if !ok || actual != "" || !present {
		t.Errorf("Eval = %v, %q, %v; want true, \"\", true", ok, actual, present)
	}
	if _, _, present := MetadataExists("missing").Eval(it); present {
		t.Error("absent key reported present")
	}
}
