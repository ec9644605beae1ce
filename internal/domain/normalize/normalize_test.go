package normalize

import (
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/semdex/internal/domain"
)

func TestValue_SeparatorAliases(t *testing.T) {
	want := "Science → Biology"
	inputs := []string{
		"Science->Biology",
		"Science -> Biology",
		"Science>Biology",
		"Science > Biology",
		"Science/Biology",
		"Science / Biology",
		"Science|Biology",
		"Science→Biology",
		"Science  →  Biology",
		"  Science\t→\nBiology  ",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := Value(in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("Value(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestValue_Whitespace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Researchers  ", "Researchers"},
		{"Systems   Biology", "Systems Biology"},
		{"Science → Systems \t Biology", "Science → Systems Biology"},
		{"A-B", "A-B"},
	}
	for _, tt := range tests {
		got, err := Value(tt.in)
		if err != nil {
			t.Fatalf("Value(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Value(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValue_Idempotent(t *testing.T) {
	inputs := []string{
		"Science->Biology->Systems Biology",
		"  a  /  b ",
		"x>y|z",
		"Plain",
		"Science  →  Biology",
	}
	for _, in := range inputs {
		once, err := Value(in)
		if err != nil {
			t.Fatalf("Value(%q): %v", in, err)
		}
		twice, err := Value(once)
		if err != nil {
			t.Fatalf("Value(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestValue_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "Science ->", "/Biology", "a//b"} {
		_, err := Value(in)
		if err == nil {
			t.Errorf("Value(%q): expected error", in)
			continue
		}
		if !errors.Is(err, domain.ErrNormalization) {
			t.Errorf("Value(%q): error %v does not wrap ErrNormalization", in, err)
		}
	}
}

func TestLabel(t *testing.T) {
	if got, err := Label("  Systems   Biology "); err != nil || got != "Systems Biology" {
		t.Errorf("Label = %q, %v", got, err)
	}
	if _, err := Label("Analytical / Cautious"); err == nil {
		t.Error("expected error for label containing a separator")
	}
	if _, err := Label(" "); err == nil {
		t.Error("expected error for empty label")
	}
}

func TestFieldName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Domain", "domain"},
		{"audience-type", "audience_type"},
		{"Target Audience", "target_audience"},
		{"  Reading   Level ", "reading_level"},
	}
	for _, tt := range tests {
		if got := FieldName(tt.in); got != tt.want {
			t.Errorf("FieldName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFields_Collision(t *testing.T) {
	_, err := Fields(map[string]string{"Domain": "Science", "domain": "Art"})
	if err == nil {
		t.Fatal("expected collision error")
	}
	var ne *domain.NormalizationError
	if !errors.As(err, &ne) || ne.Field != "domain" {
		t.Errorf("error = %v", err)
	}
}

func TestFields_NormalizesNamesAndValues(t *testing.T) {
	got, err := Fields(map[string]string{"Domain": "Science->Biology", "Reading Level": " easy "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["domain"] != "Science → Biology" || got["reading_level"] != "easy" {
		t.Errorf("Fields = %v", got)
	}
}

func TestFields_EmptyValueNamesField(t *testing.T) {
	_, err := Fields(map[string]string{"Tone": "  "})
	var ne *domain.NormalizationError
	if !errors.As(err, &ne) || ne.Field != "tone" {
		t.Errorf("error = %v", err)
	}
}

func TestPathHelpers(t *testing.T) {
	v := "Science → Biology → Systems Biology"

	if got := Path(v); !slices.Equal(got, []string{"Science", "Biology", "Systems Biology"}) {
		t.Errorf("Path = %v", got)
	}
	if got := Depth(v); got != 3 {
		t.Errorf("Depth = %d", got)
	}
	if got := Root(v); got != "Science" {
		t.Errorf("Root = %q", got)
	}
	if p, ok := Parent(v); !ok || p != "Science → Biology" {
		t.Errorf("Parent = %q, %v", p, ok)
	}
	if _, ok := Parent("Science"); ok {
		t.Error("root value must have no parent")
	}
	if !IsHierarchical(v) || IsHierarchical("Science") {
		t.Error("IsHierarchical mismatch")
	}
	if Join("a", "b") != "a → b" {
		t.Error("Join mismatch")
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		value, ref string
		want       bool
	}{
		{"A → B", "A → B", true},
		{"A → B → C", "A → B", true},
		{"A", "A → B", false},
		{"A → X", "A → B", false},
		{"Sciences", "Science", false},
		{"Science → Biology", "Science", true},
	}
	for _, tt := range tests {
		if got := HasPrefix(tt.value, tt.ref); got != tt.want {
			t.Errorf("HasPrefix(%q, %q) = %v, want %v", tt.value, tt.ref, got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("Science->Biology", "Science  →  Biology") {
		t.Error("expected aliases to be equal")
	}
	if Equal("Science", "science") {
		t.Error("case must be preserved")
	}
	if Equal("", "") {
		t.Error("values that fail normalization are never equal")
	}
}
