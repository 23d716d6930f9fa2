package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Fields is a document body. Values are string, float64, int64, bool,
// time.Time or nil; Where and the backends normalize other numeric types.
type Fields map[string]any

// Clone returns a shallow copy. Values are immutable scalars.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = normalize(v)
	}
	return out
}

// Merge copies every key of src into f.
func (f Fields) Merge(src Fields) {
	for k, v := range src {
		f[k] = normalize(v)
	}
}

// Has reports whether key is present and non-nil.
func (f Fields) Has(key string) bool {
	v, ok := f[key]
	return ok && v != nil
}

// String returns a string value, or "" when absent or of another type.
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Float returns a numeric value. Numeric strings are accepted because older
// documents stored amounts as text.
func (f Fields) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		x, err := v.Float64()
		return x, err == nil
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return x, err == nil
	}
	return 0, false
}

// Int returns an integral value.
func (f Fields) Int(key string) (int, bool) {
	x, ok := f.Float(key)
	if !ok || x != math.Trunc(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return int(x), true
}

// Bool returns a boolean value.
func (f Fields) Bool(key string) (bool, bool) {
	b, ok := f[key].(bool)
	return b, ok
}

// Time returns a timestamp. RFC 3339 strings are accepted.
func (f Fields) Time(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	}
	return time.Time{}, false
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

// compare orders two field values of compatible types.
func compare(a, b any) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok || x != y {
			return 1, ok
		}
		return 0, true
	case float64, int64:
		xf, _ := Fields{"v": x}.Float("v")
		yf, ok := Fields{"v": b}.Float("v")
		if !ok {
			return 0, false
		}
		switch {
		case xf < yf:
			return -1, true
		case xf > yf:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// timeKey marks an encoded timestamp in JSON documents.
const timeKey = "$time"

// EncodeJSON serializes fields, keeping timestamps distinguishable from strings.
func EncodeJSON(f Fields) ([]byte, error) {
	out := make(map[string]any, len(f))
	for k, v := range f {
		switch x := normalize(v).(type) {
		case time.Time:
			out[k] = map[string]string{timeKey: x.UTC().Format(time.RFC3339Nano)}
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("field %q: non-finite number", k)
			}
			out[k] = x
		case string, int64, bool, nil:
			out[k] = x
		default:
			return nil, fmt.Errorf("field %q: unsupported type %T", k, v)
		}
	}
	return json.Marshal(out)
}

// DecodeJSON reverses EncodeJSON. Integral numbers decode as int64.
func DecodeJSON(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	out := make(Fields, len(raw))
	for k, v := range raw {
		val, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func decodeValue(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	case map[string]any:
		s, ok := x[timeKey].(string)
		if !ok || len(x) != 1 {
			return nil, fmt.Errorf("nested objects are not supported")
		}
		return time.Parse(time.RFC3339Nano, s)
	case string, bool, nil:
		return x, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}
