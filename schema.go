package semdex

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

const tagKey = "semdex"

var timeType = reflect.TypeFor[time.Time]()

// schemaMeta holds parsed struct tag metadata, cached per TypedIndex.
type schemaMeta struct {
	typ reflect.Type // struct type for reconstruction
	ptr bool         // T is a pointer to typ

	// Field index in the struct for each role.
	idIdx      int
	textIdx    int
	createdIdx int // -1 if not present
	updatedIdx int // -1 if not present

	// Mapping from struct field index → descriptor field or metadata key.
	descFields []fieldMapping
	metaFields []fieldMapping
}

type fieldMapping struct {
	structIdx int
	name      string
}

// parseSchema reflects on T and extracts semdex struct tag metadata.
//
//	type Note struct {
//		ID     string    `semdex:",id"`
//		Body   string    `semdex:",text"`
//		Domain string    `semdex:"domain"`
//		Source string    `semdex:"source,meta"`
//		Added  time.Time `semdex:",created"`
//	}
func parseSchema[T any]() (*schemaMeta, error) {
	t := reflect.TypeFor[T]()
	ptr := t.Kind() == reflect.Pointer
	if ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("semdex: type %s is not a struct", t)
	}

	meta := &schemaMeta{
		typ: t, ptr: ptr, idIdx: -1, textIdx: -1,
		createdIdx: -1, updatedIdx: -1,
	}

	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if !f.IsExported() {
			return nil, fmt.Errorf("semdex: tagged field %s is not exported", f.Name)
		}
		if err := applyTag(meta, i, f, tag); err != nil {
			return nil, err
		}
	}

	return validateSchema(meta, t)
}

// applyTag processes a single struct field's semdex tag.
func applyTag(meta *schemaMeta, idx int, f reflect.StructField, tag string) error {
	name, modifier, _ := strings.Cut(tag, ",")

	switch modifier {
	case "id":
		if meta.idIdx != -1 {
			return fmt.Errorf("semdex: duplicate id tag on field %s", f.Name)
		}
		meta.idIdx = idx
		return wantKind(f, reflect.String)
	case "text":
		if meta.textIdx != -1 {
			return fmt.Errorf("semdex: duplicate text tag on field %s", f.Name)
		}
		meta.textIdx = idx
		return wantKind(f, reflect.String)
	case "created", "updated":
		if f.Type != timeType {
			return fmt.Errorf("semdex: %s field %s must be time.Time", modifier, f.Name)
		}
		if modifier == "created" {
			meta.createdIdx = idx
		} else {
			meta.updatedIdx = idx
		}
	case "meta":
		if name == "" {
			return fmt.Errorf("semdex: metadata field %s needs a key", f.Name)
		}
		meta.metaFields = append(meta.metaFields, fieldMapping{structIdx: idx, name: name})
	case "":
		// Descriptor field: the tag is the field name.
		meta.descFields = append(meta.descFields, fieldMapping{structIdx: idx, name: name})
		return wantKind(f, reflect.String)
	default:
		return fmt.Errorf("semdex: unknown modifier %q on field %s", modifier, f.Name)
	}
	return nil
}

func wantKind(f reflect.StructField, k reflect.Kind) error {
	if f.Type.Kind() != k {
		return fmt.Errorf("semdex: field %s must be a %s, got %s", f.Name, k, f.Type)
	}
	return nil
}

func validateSchema(meta *schemaMeta, t reflect.Type) (*schemaMeta, error) {
	if meta.idIdx == -1 {
		return nil, fmt.Errorf("semdex: no field with `semdex:\",id\"` tag in %s", t)
	}
	if meta.textIdx == -1 {
		return nil, fmt.Errorf("semdex: no field with `semdex:\",text\"` tag in %s", t)
	}
	return meta, nil
}

// toNewItem converts a typed struct to a NewItem. Empty descriptor fields are omitted.
func (m *schemaMeta) toNewItem(v any) NewItem {
	rv := reflect.Indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return NewItem{}
	}

	desc := make(map[string]string, len(m.descFields))
	for _, df := range m.descFields {
		if s := rv.Field(df.structIdx).String(); s != "" {
			desc[df.name] = s
		}
	}

	var md map[string]any
	for _, mf := range m.metaFields {
		fv := rv.Field(mf.structIdx)
		if fv.IsZero() {
			continue
		}
		if md == nil {
			md = make(map[string]any, len(m.metaFields))
		}
		md[mf.name] = fv.Interface()
	}

	return NewItem{
		ID:         rv.Field(m.idIdx).String(),
		Text:       rv.Field(m.textIdx).String(),
		Descriptor: desc,
		Metadata:   md,
	}
}

// toUpdate converts a typed struct to a full replacement of text, descriptor
// and mapped metadata keys. Zero metadata fields remove their key.
func (m *schemaMeta) toUpdate(v any) ItemUpdate {
	in := m.toNewItem(v)
	md := make(map[string]any, len(m.metaFields))
	for _, mf := range m.metaFields {
		md[mf.name] = in.Metadata[mf.name]
	}
	return ItemUpdate{Text: &in.Text, Descriptor: in.Descriptor, Metadata: md}
}

// fromItem converts an Item back to a typed struct using schema metadata.
func (m *schemaMeta) fromItem(it Item) any {
	v := reflect.New(m.typ).Elem()

	v.Field(m.idIdx).SetString(it.ID)
	v.Field(m.textIdx).SetString(it.Text)
	for _, df := range m.descFields {
		if val, ok := it.Descriptor[df.name]; ok {
			v.Field(df.structIdx).SetString(val)
		}
	}
	for _, mf := range m.metaFields {
		if val, ok := it.Metadata[mf.name]; ok {
			setValue(v.Field(mf.structIdx), val)
		}
	}
	if m.createdIdx != -1 {
		v.Field(m.createdIdx).Set(reflect.ValueOf(it.CreatedAt))
	}
	if m.updatedIdx != -1 {
		v.Field(m.updatedIdx).Set(reflect.ValueOf(it.UpdatedAt))
	}
	if m.ptr {
		return v.Addr().Interface()
	}
	return v.Interface()
}

// setValue assigns val to dst when the types line up. Numbers decoded from
// storage as float64 are converted to the field's numeric kind.
func setValue(dst reflect.Value, val any) {
	src := reflect.ValueOf(val)
	if !src.IsValid() {
		return
	}
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case isNumeric(src.Kind()) && isNumeric(dst.Kind()):
		dst.Set(src.Convert(dst.Type()))
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
