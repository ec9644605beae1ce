package query

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/item"
)

// compareKeys orders a and b by keys in turn. Missing values sort last in either direction.
func compareKeys[T item.Item](keys []SortKey, a, b T) int {
	for _, k := range keys {
		va, oka := sortValue(a, k.Field)
		vb, okb := sortValue(b, k.Field)
		switch {
		case !oka && !okb:
			continue
		case !oka:
			return 1
		case !okb:
			return -1
		}
		c := compareValues(va, vb)
		if k.Direction == Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func sortValue(it item.Item, field string) (any, bool) {
	switch field {
	case SortCreated:
		return it.CreatedAt(), true
	case SortUpdated:
		return it.UpdatedAt(), true
	case SortText:
		return it.Text(), true
	}
	if key, ok := strings.CutPrefix(field, MetadataPrefix); ok {
		v, ok := it.Metadata()[key]
		return v, ok && v != nil
	}
	v, ok := it.Descriptor().Get(field)
	return v, ok
}

// Type ranks for mixed metadata values.
const (
	rankNumber = iota
	rankString
	rankBool
	rankTime
	rankOther
)

func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmp.Compare(fa, fb)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func rank(v any) int {
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case string:
		return rankString
	case bool:
		return rankBool
	case time.Time:
		return rankTime
	default:
		return rankOther
	}
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
