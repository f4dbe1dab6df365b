package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Bounds on the per-document extension map.
const (
	MaxMetadataKeys      = 32
	MaxMetadataKeyLen    = 64
	MaxMetadataStringLen = 1024
)

// reservedKeys are core record fields that extension metadata may not shadow.
var reservedKeys = map[string]struct{}{
	"id":           {},
	"path":         {},
	"score":        {},
	"content_hash": {},
	"created_at":   {},
	"updated_at":   {},
}

// Kind identifies the scalar type held by a Value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
)

// Value is a typed scalar stored in a document's extension metadata.
type Value struct {
	kind Kind
	str  string
	num  int64
	flt  float64
	b    bool
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer Value.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: KindFloat, flt: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the scalar type.
func (v Value) Kind() Kind { return v.kind }

// Any returns the underlying Go value, or nil for the zero Value.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.flt
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Text renders the value for display.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as a bare JSON scalar. Floats always carry
// a fraction or exponent so they decode as floats again.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind != KindFloat {
		return json.Marshal(v.Any())
	}
	if math.IsNaN(v.flt) || math.IsInf(v.flt, 0) {
		return nil, fmt.Errorf("metadata float %v is not representable in JSON", v.flt)
	}
	text := strconv.FormatFloat(v.flt, 'g', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return []byte(text), nil
}

// UnmarshalJSON accepts a JSON string, number or bool.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch x := raw.(type) {
	case string:
		*v = String(x)
	case bool:
		*v = Bool(x)
	case json.Number:
		if !strings.ContainsAny(x.String(), ".eE") {
			if n, err := x.Int64(); err == nil {
				*v = Int(n)
				return nil
			}
		}
		f, err := x.Float64()
		if err != nil {
			return fmt.Errorf("metadata number %q: %w", x, err)
		}
		*v = Float(f)
	default:
		return fmt.Errorf("metadata value must be a scalar, got %T", raw)
	}
	return nil
}

// Metadata is the bounded, typed extension map attached to a document.
type Metadata map[string]Value

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns m overlaid with update; keys in update win. Keys only in
// m are carried over in sorted order while the result has fewer than
// MaxMetadataKeys entries.
func (m Metadata) Merge(update Metadata) Metadata {
	out := update.Clone()
	old := make([]string, 0, len(m))
	for k := range m {
		if _, ok := update[k]; !ok {
			old = append(old, k)
		}
	}
	sort.Strings(old)
	for _, k := range old {
		if len(out) >= MaxMetadataKeys {
			break
		}
		out[k] = m[k]
	}
	return out
}

// Bounded returns a copy of m restricted to the allowed keys and sizes,
// along with the sorted names of anything that was dropped. Over-long
// strings are truncated rather than dropped.
func (m Metadata) Bounded() (Metadata, []string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Metadata, len(m))
	var dropped []string
	for _, k := range keys {
		v := m[k]
		_, reserved := reservedKeys[k]
		switch {
		case reserved, k == "", len(k) > MaxMetadataKeyLen, v.kind == 0, len(out) >= MaxMetadataKeys:
			dropped = append(dropped, k)
			continue
		}
		if v.kind == KindString && len(v.str) > MaxMetadataStringLen {
			v = String(truncateUTF8(v.str, MaxMetadataStringLen))
		}
		out[k] = v
	}
	return out, dropped
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
