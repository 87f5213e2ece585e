// Package probe extracts values from provider responses whose shape varies
// between SDK versions and endpoints.
//
// A response is first normalized into a mapping view with ToMap, then an
// ordered list of dotted paths is tried with PickFirst. Neither function
// returns an error or panics: anything that cannot be resolved becomes an
// empty result.
package probe

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// RawKey holds the string rendering of a value that could not be mapped.
const RawKey = "_raw"

// Mapper is implemented by response types that know their own mapping view.
type Mapper interface {
	AsMap() map[string]any
}

// ToMap converts v into a map view.
//
// nil yields an empty map. Maps, Mappers, JSON documents (as []byte,
// json.RawMessage or string) and JSON-serializable structs are converted
// directly. Anything else yields {"_raw": fmt.Sprint(v)}.
func ToMap(v any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			out = map[string]any{RawKey: safeSprint(v)}
		}
	}()

	switch t := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		if t == nil {
			return map[string]any{}
		}
		return t
	case Mapper:
		if m := t.AsMap(); m != nil {
			return m
		}
		return map[string]any{}
	case json.RawMessage:
		return fromJSON(t, string(t))
	case []byte:
		return fromJSON(t, string(t))
	case string:
		return fromJSON([]byte(t), t)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return map[string]any{}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{RawKey: safeSprint(v)}
	}
	return fromJSON(data, safeSprint(v))
}

func fromJSON(data []byte, raw string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{RawKey: raw}
	}
	return m
}

// PickFirst returns the first non-empty value found at any of the dotted
// paths, rendered as a string. It returns "" when no path resolves.
func PickFirst(m map[string]any, paths []string) string {
	for _, p := range paths {
		v, ok := Lookup(m, p)
		if !ok || IsEmpty(v) {
			continue
		}
		return Stringify(v)
	}
	return ""
}

// Lookup walks a dotted path through nested maps.
func Lookup(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := node[part]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// IsEmpty reports whether v counts as "not found": nil, "", an empty list
// or an empty mapping.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Stringify renders a probed value. Strings pass through, scalars use
// strconv, composites are rendered as JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return safeSprint(v)
}

func safeSprint(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("<%T>", v)
		}
	}()
	return fmt.Sprint(v)
}
