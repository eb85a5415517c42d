// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package value converts loosely typed field values (strings, numbers, lists,
// maps decoded from YAML or JSON) into the canonical text and parts the
// scorers compare.
package value

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/eval-engine/pkg/types"
)

// ErrNotText is returned when a value has no textual form (funcs, channels,
// structs, or containers holding them).
var ErrNotText = errors.New("value has no textual form")

// DateLayouts are the date formats recognized in date fields, most specific first.
var DateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
	"2006-01",
}

// Text returns the canonical comparison text of v for field type ft.
func Text(v any, ft types.FieldType) (string, error) {
	s, err := raw(v)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	switch ft {
	case types.FieldNumber:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
	case types.FieldDate:
		if t, _, ok := ParseDate(s); ok {
			return t.Format("2006-01-02"), nil
		}
	case types.FieldResource:
		return canonicalResource(s), nil
	}
	return s, nil
}

// IsEmpty reports whether v carries no content.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Items returns the list items of v: slice elements, or the parts of a
// string split on ';' (preferred) or ','. The second result is false when v
// is a scalar that does not look like a list.
func Items(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		parts := SplitList(t)
		return parts, len(parts) > 1
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, err := raw(rv.Index(i).Interface())
		if err != nil {
			s = fmt.Sprint(rv.Index(i).Interface())
		}
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	return items, true
}

// SplitList splits a delimited string on ';' when present, otherwise ','.
// Empty parts are dropped.
func SplitList(s string) []string {
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	var parts []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// Fields returns a map value keyed by the textual form of its keys. The
// second result is false when v is not a map.
func Fields(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out, true
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Strings collects every string leaf of v in a stable order. Scalars
// contribute their textual form.
func Strings(v any) []string {
	if v == nil {
		return nil
	}
	if m, ok := Fields(v); ok {
		var out []string
		for _, k := range SortedKeys(m) {
			out = append(out, Strings(m[k])...)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		var out []string
		for i := 0; i < rv.Len(); i++ {
			out = append(out, Strings(rv.Index(i).Interface())...)
		}
		return out
	}
	s, err := raw(v)
	if err != nil {
		return nil
	}
	return []string{s}
}

// ParseDate parses s with the known layouts and returns the matched layout.
func ParseDate(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, layout, true
		}
	}
	return time.Time{}, "", false
}

// raw converts scalars, lists, and maps to text. Maps render as
// "key: value" pairs in key order joined by "; ".
func raw(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		return t.Format("2006-01-02"), nil
	case fmt.Stringer:
		return t.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.Slice, reflect.Array:
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, err := raw(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), nil
	case reflect.Map:
		m, _ := Fields(v)
		parts := make([]string, 0, len(m))
		for _, k := range SortedKeys(m) {
			s, err := raw(m[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, k+": "+s)
		}
		return strings.Join(parts, "; "), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return "", nil
		}
		return raw(rv.Elem().Interface())
	}
	return "", fmt.Errorf("%w: %T", ErrNotText, v)
}

// canonicalResource strips scheme, "www." and trailing slashes from URLs and
// lower-cases DOIs so equivalent identifiers compare equal.
func canonicalResource(s string) string {
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "doi:") {
		return strings.TrimSpace(lower[len("doi:"):])
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		if host == "doi.org" || host == "dx.doi.org" {
			return strings.ToLower(strings.TrimPrefix(u.Path, "/"))
		}
		out := host + strings.TrimRight(u.Path, "/")
		if u.RawQuery != "" {
			out += "?" + u.RawQuery
		}
		return out
	}
	return strings.TrimRight(s, "/")
}
