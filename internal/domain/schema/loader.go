package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/normalize"
)

// Recognized schema file extensions. JSON is parsed by the YAML decoder.
var fileExts = []string{".yaml", ".yml", ".json"}

// manifestNames are the optional registry manifests at the schema root.
var manifestNames = []string{"registry.yaml", "registry.yml", "registry.json"}

type manifest struct {
	Versions map[string][]string `yaml:"versions"`
	Order    []string            `yaml:"order"`
}

// LoadDir loads a registry from root.
//
// With a registry manifest (`versions: {v1: [domain, intent]}`) only the listed
// versions and fields are loaded and every listed file must exist. Without one,
// each subdirectory is a version and each schema file in it a field named after
// the file stem. Any problem is a *domain.SchemaError.
func LoadDir(root string) (*Registry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &domain.SchemaError{File: root, Msg: "schema directory not found"}
	}
	if !info.IsDir() {
		return nil, &domain.SchemaError{File: root, Msg: "schema root is not a directory"}
	}

	m, mpath, err := readManifest(root)
	if err != nil {
		return nil, err
	}

	var versions []*Version
	if m != nil {
		ids := m.Order
		if len(ids) == 0 {
			for id := range m.Versions {
				ids = append(ids, id)
			}
			slices.Sort(ids)
		}
		for _, id := range ids {
			fields, ok := m.Versions[id]
			if !ok {
				return nil, &domain.SchemaError{File: mpath, Msg: fmt.Sprintf("order lists unknown version %q", id)}
			}
			v, err := loadListed(root, id, fields)
			if err != nil {
				return nil, err
			}
			versions = append(versions, v)
		}
		return NewRegistry(versions...)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &domain.SchemaError{File: root, Msg: err.Error()}
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasPrefix(e.Name(), "_") {
			continue
		}
		v, err := LoadVersionDir(filepath.Join(root, e.Name()), e.Name())
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return nil, &domain.SchemaError{File: root, Msg: "no schema versions found"}
	}
	return NewRegistry(versions...)
}

// LoadVersionDir loads every schema file in dir as fields of version id.
func LoadVersionDir(dir, id string) (*Version, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.SchemaError{File: dir, Msg: "version directory not readable"}
	}
	var fields []*Field
	for _, e := range entries {
		if e.IsDir() || !isSchemaFile(e.Name()) || isManifest(e.Name()) {
			continue
		}
		f, err := LoadFieldFile(filepath.Join(dir, e.Name()), id)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, &domain.SchemaError{File: dir, Msg: "no schema files found"}
	}
	v, err := NewVersion(id, fields...)
	if err != nil {
		return nil, withFile(err, dir)
	}
	return v, nil
}

// LoadFieldFile reads one field definition. The field name is the file stem.
func LoadFieldFile(path, version string) (*Field, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &domain.SchemaError{File: path, Msg: "schema file not readable"}
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	f, err := ParseField(name, version, data)
	if err != nil {
		return nil, withFile(err, path)
	}
	return f, nil
}

// ParseField decodes a field document of the shape
// `{version, required, description, values: [label | {label: [child, ...]}]}`.
func ParseField(name, version string, data []byte) (*Field, error) {
	fieldName := normalize.FieldName(name)

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &domain.SchemaError{Field: fieldName, Msg: "malformed document: " + err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &domain.SchemaError{Field: fieldName, Msg: "empty document"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &domain.SchemaError{Field: fieldName, Line: root.Line, Msg: "document must be a mapping"}
	}

	var (
		declared    string
		hasVersion  bool
		required    bool
		description string
		values      *yaml.Node
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "version":
			if val.Kind != yaml.ScalarNode {
				return nil, &domain.SchemaError{Field: fieldName, Line: val.Line, Msg: "version must be a string"}
			}
			declared, hasVersion = val.Value, true
		case "required":
			if err := val.Decode(&required); err != nil {
				return nil, &domain.SchemaError{Field: fieldName, Line: val.Line, Msg: "required must be a boolean"}
			}
		case "description":
			if err := val.Decode(&description); err != nil {
				return nil, &domain.SchemaError{Field: fieldName, Line: val.Line, Msg: "description must be a string"}
			}
		case "values":
			values = val
		}
	}

	if !hasVersion {
		return nil, &domain.SchemaError{Field: fieldName, Msg: "missing required key \"version\""}
	}
	if version != "" && declared != version {
		return nil, &domain.SchemaVersionError{Expected: version, Actual: declared}
	}
	if values == nil {
		return nil, &domain.SchemaError{Field: fieldName, Msg: "missing required key \"values\""}
	}

	nodes, err := parseValues(fieldName, values)
	if err != nil {
		return nil, err
	}
	return NewField(fieldName, required, description, nodes...)
}

func parseValues(field string, seq *yaml.Node) ([]*Node, error) {
	if seq.Kind != yaml.SequenceNode {
		return nil, &domain.SchemaError{Field: field, Line: seq.Line, Msg: "values must be a list"}
	}
	nodes := make([]*Node, 0, len(seq.Content))
	for _, item := range seq.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			nodes = append(nodes, NewNode(item.Value))
		case yaml.MappingNode:
			for i := 0; i+1 < len(item.Content); i += 2 {
				key, val := item.Content[i], item.Content[i+1]
				if key.Kind != yaml.ScalarNode {
					return nil, &domain.SchemaError{Field: field, Line: key.Line, Msg: "label must be a string"}
				}
				if val.Kind != yaml.SequenceNode {
					return nil, &domain.SchemaError{
						Field: field,
						Line:  val.Line,
						Msg:   fmt.Sprintf("children of %q must be a list", key.Value),
					}
				}
				children, err := parseValues(field, val)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, NewNode(key.Value, children...))
			}
		default:
			return nil, &domain.SchemaError{Field: field, Line: item.Line, Msg: "value entry must be a string or a mapping"}
		}
	}
	return nodes, nil
}

func readManifest(root string) (*manifest, string, error) {
	for _, name := range manifestNames {
		path := filepath.Join(root, name)
		data, err := os.ReadFile(filepath.Clean(path))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, path, &domain.SchemaError{File: path, Msg: "manifest not readable"}
		}
		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, path, &domain.SchemaError{File: path, Msg: "malformed manifest: " + err.Error()}
		}
		if m.Versions == nil {
			return nil, path, &domain.SchemaError{File: path, Msg: "manifest missing \"versions\" key"}
		}
		return &m, path, nil
	}
	return nil, "", nil
}

func loadListed(root, id string, names []string) (*Version, error) {
	dir := filepath.Join(root, id)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, &domain.SchemaError{File: dir, Msg: fmt.Sprintf("manifest references missing version directory %q", id)}
	}
	fields := make([]*Field, 0, len(names))
	for _, name := range names {
		path, ok := findFieldFile(dir, name)
		if !ok {
			return nil, &domain.SchemaError{
				File:  dir,
				Field: normalize.FieldName(name),
				Msg:   "manifest references missing schema file",
			}
		}
		f, err := LoadFieldFile(path, id)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	v, err := NewVersion(id, fields...)
	if err != nil {
		return nil, withFile(err, dir)
	}
	return v, nil
}

func findFieldFile(dir, name string) (string, bool) {
	for _, ext := range fileExts {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func isSchemaFile(name string) bool {
	return slices.Contains(fileExts, strings.ToLower(filepath.Ext(name)))
}

func isManifest(name string) bool {
	return slices.Contains(manifestNames, strings.ToLower(name))
}

func withFile(err error, file string) error {
	var se *domain.SchemaError
	if errors.As(err, &se) && se.File == "" {
		cp := *se
		cp.File = file
		return &cp
	}
	var ve *domain.SchemaVersionError
	if errors.As(err, &ve) && ve.File == "" {
		cp := *ve
		cp.File = file
		return &cp
	}
	return err
}
