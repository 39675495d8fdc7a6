// Document value normalization, cloning, equality and ordering.

package snapshot

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
)

// ErrUnsupported is returned by Normalize for values outside the document model.
var ErrUnsupported = errors.New("unsupported document value")

// Kind is the tag of a normalized document value.
type Kind int

// Kinds are declared in the order used by Compare across kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	// KindInvalid is reported for values that were not normalized.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// KindOf returns the tag of a normalized value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case float64:
		return KindNumber
	case string:
		return KindString
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindInvalid
	}
}

// Normalize converts v into a document value.
//
// Numbers become float64, slices []any and string-keyed maps map[string]any.
// Nil slices and maps become empty ones.
// Structs and other marshalable types are converted through their JSON form.
// Functions, channels, complex numbers and non-finite floats are rejected.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return t, nil
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint8:
		return float64(t), nil
	case uint16:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
		}
		return finite(f)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := Normalize(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive // Everything else goes through JSON.
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Uintptr:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
	case reflect.Slice:
		// A nil slice is an empty array, as for []any. []byte keeps its JSON
		// meaning of a base64 string.
		if rv.IsNil() && rv.Type().Elem().Kind() != reflect.Uint8 {
			return []any{}, nil
		}
	case reflect.Map:
		if rv.IsNil() && rv.Type().Key().Kind() == reflect.String {
			return map[string]any{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %w", ErrUnsupported, v, err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %T: %w", ErrUnsupported, v, err)
	}
	return out, nil
}

func finite(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: non-finite number %v", ErrUnsupported, f)
	}
	return f, nil
}

// Clone returns a deep copy of a normalized value.
func Clone(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two normalized values are structurally equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Compare orders two normalized values, returning -1, 0 or 1.
//
// Values of different kinds order by Kind. Numbers compare numerically,
// strings byte-wise, arrays element by element then by length and objects by
// their JSON encoding.
func Compare(a, b any) int {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return cmp.Compare(ka, kb)
	}
	switch va := a.(type) {
	case bool:
		vb := b.(bool)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		default:
			return 1
		}
	case float64:
		return cmp.Compare(va, b.(float64))
	case string:
		return cmp.Compare(va, b.(string))
	case []any:
		return slices.CompareFunc(va, b.([]any), Compare)
	case map[string]any:
		ea, _ := json.Marshal(va)
		eb, _ := json.Marshal(b)
		return cmp.Compare(string(ea), string(eb))
	default:
		return 0
	}
}
