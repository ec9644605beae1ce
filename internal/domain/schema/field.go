package schema

import (
	"fmt"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
)

// Field is the immutable definition of one schema field: its value tree plus flags.
type Field struct {
	name        string
	required    bool
	description string
	roots       []*Node
	index       map[string]*Node
}

// NewField validates and creates a Field.
// Labels are canonicalized; empty labels, labels containing a separator alias,
// and duplicate sibling labels are rejected.
func NewField(name string, required bool, description string, roots ...*Node) (*Field, error) {
	fieldName := normalize.FieldName(name)
	if fieldName == "" {
		return nil, &domain.SchemaError{Msg: "field name is required"}
	}
	if len(roots) == 0 {
		return nil, &domain.SchemaError{Field: fieldName, Msg: "values must not be empty"}
	}
	built, index, err := buildLevel(fieldName, nil, roots)
	if err != nil {
		return nil, err
	}
	return &Field{
		name:        fieldName,
		required:    required,
		description: description,
		roots:       built,
		index:       index,
	}, nil
}

func buildLevel(field string, parent []string, raw []*Node) ([]*Node, map[string]*Node, error) {
	out := make([]*Node, 0, len(raw))
	index := make(map[string]*Node, len(raw))
	for _, r := range raw {
		if r == nil {
			return nil, nil, &domain.SchemaError{Field: field, Msg: "nil value node"}
		}
		label, err := normalize.Label(r.label)
		if err != nil {
			return nil, nil, &domain.SchemaError{
				Field: field,
				Msg:   fmt.Sprintf("invalid label %q under %q: %v", r.label, normalize.Join(parent...), err),
			}
		}
		if _, dup := index[label]; dup {
			return nil, nil, &domain.SchemaError{
				Field: field,
				Msg:   fmt.Sprintf("duplicate label %q under %q", label, normalize.Join(parent...)),
			}
		}
		path := append(append([]string(nil), parent...), label)
		children, childIndex, err := buildLevel(field, path, r.children)
		if err != nil {
			return nil, nil, err
		}
		n := &Node{label: label, children: children, index: childIndex}
		out = append(out, n)
		index[label] = n
	}
	return out, index, nil
}

// Name returns the canonical field name.
func (f *Field) Name() string { return f.name }

// Required reports whether complete validation demands this field.
func (f *Field) Required() bool { return f.required }

// Description returns the human description.
func (f *Field) Description() string { return f.description }

// Roots returns a copy of the top-level nodes.
func (f *Field) Roots() []*Node {
	out := make([]*Node, len(f.roots))
	copy(out, f.roots)
	return out
}

// Walk resolves path segment by segment. It returns the deepest resolved node and
// the number of matched segments; matched == len(path) means the whole path resolves.
func (f *Field) Walk(path []string) (*Node, int) {
	var cur *Node
	index := f.index
	for i, seg := range path {
		next, ok := index[seg]
		if !ok {
			return cur, i
		}
		cur = next
		index = next.index
	}
	return cur, len(path)
}

// Contains reports whether the canonical value resolves to some node.
func (f *Field) Contains(value string) bool {
	path := normalize.Path(value)
	if len(path) == 0 {
		return false
	}
	_, n := f.Walk(path)
	return n == len(path)
}

// LabelsAt returns the child labels available below the given prefix path.
func (f *Field) LabelsAt(prefix []string) []string {
	if len(prefix) == 0 {
		return labels(f.roots)
	}
	node, n := f.Walk(prefix)
	if n != len(prefix) || node == nil {
		return nil
	}
	return labels(node.children)
}

// Values returns every valid canonical value, internal nodes included, in tree order.
func (f *Field) Values() []string {
	var out []string
	var walk func(prefix []string, nodes []*Node)
	walk = func(prefix []string, nodes []*Node) {
		for _, n := range nodes {
			path := append(append([]string(nil), prefix...), n.label)
			out = append(out, normalize.Join(path...))
			walk(path, n.children)
		}
	}
	walk(nil, f.roots)
	return out
}

// DuplicateLabels returns labels that occur at more than one place in the tree, sorted.
// Sibling duplicates are rejected at construction; these are legal but often mistakes.
func (f *Field) DuplicateLabels() []string {
	seen := make(map[string]int)
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			seen[n.label]++
			walk(n.children)
		}
	}
	walk(f.roots)
	var out []string
	for label, count := range seen {
		if count > 1 {
			out = append(out, label)
		}
	}
	sortStrings(out)
	return out
}
