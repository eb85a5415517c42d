// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/eval-engine/internal/value"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// consistencyChecks is the number of format checks consistency runs.
const consistencyChecks = 4

var (
	numericPrefix = regexp.MustCompile(`^[-+]?\d+(\.\d+)?`)
	yearOnly      = regexp.MustCompile(`^\d{4}$`)
	doiPattern    = regexp.MustCompile(`(?i)^(doi:\s*)?10\.\d{4,9}/\S+$`)
	resourceID    = regexp.MustCompile(`^R\d+$`)
	bareHost      = regexp.MustCompile(`^[\w-]+(\.[\w-]+)+(/\S*)?$`)

	datePatterns = map[string]*regexp.Regexp{
		"iso":    regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		"slash":  regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		"dotted": regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
		"long":   regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.? \d{1,2}, \d{4}\b`),
	}
)

// completeness is the fraction of the reference's sub-parts present in the
// extracted value: keys of a structured reference, items of a list
// reference, or the single value of a scalar.
func completeness(ref, ext any, ft types.FieldType) types.DimensionResult {
	if refFields, ok := value.Fields(ref); ok {
		extFields, _ := asFields(ext)
		var required, issues []string
		for _, k := range value.SortedKeys(refFields) {
			if !value.IsEmpty(refFields[k]) {
				required = append(required, k)
			}
		}
		if len(required) == 0 {
			return dimension(1, nil)
		}
		present := 0
		for _, k := range required {
			if v, ok := extFields[k]; ok && !value.IsEmpty(v) {
				present++
				continue
			}
			issues = append(issues, "missing required sub-field: "+k)
		}
		return dimension(float64(present)/float64(len(required)), issues)
	}

	if ft == types.FieldList || isSlice(ref) {
		required := itemList(ref)
		if len(required) == 0 {
			return dimension(1, nil)
		}
		have := make(map[string]bool)
		for _, it := range itemList(ext) {
			have[strings.ToLower(it)] = true
		}
		var issues []string
		present := 0
		seen := make(map[string]bool)
		for _, it := range required {
			key := strings.ToLower(it)
			if seen[key] {
				continue
			}
			seen[key] = true
			if have[key] {
				present++
				continue
			}
			issues = append(issues, "missing item: "+it)
		}
		return dimension(float64(present)/float64(len(seen)), issues)
	}

	if value.IsEmpty(ref) || !value.IsEmpty(ext) {
		return dimension(1, nil)
	}
	return dimension(0, []string{"value missing"})
}

// consistency runs four format checks over the extracted strings and scores
// 1 − irregular/checks.
func consistency(ext any, ft types.FieldType) types.DimensionResult {
	strs := value.Strings(ext)
	var issues []string

	for _, s := range strs {
		if s != strings.TrimSpace(s) || strings.Contains(s, "  ") || strings.ContainsAny(s, "\t") {
			issues = append(issues, "irregular whitespace")
			break
		}
	}

	if ft == types.FieldList || isSlice(ext) {
		if msg := delimiterIrregularity(strs); msg != "" {
			issues = append(issues, msg)
		}
	}

	kinds := make(map[string]bool)
	for _, s := range strs {
		for kind, re := range datePatterns {
			if re.MatchString(s) {
				kinds[kind] = true
			}
		}
	}
	if len(kinds) > 1 {
		issues = append(issues, "mixed date formats")
	}

	for _, s := range strs {
		if !balanced(s) {
			issues = append(issues, "unbalanced brackets")
			break
		}
	}

	return dimension(1-float64(len(issues))/consistencyChecks, issues)
}

// delimiterIrregularity reports mixed list separators or inconsistent
// spacing after the separator.
func delimiterIrregularity(strs []string) string {
	for _, s := range strs {
		if strings.Contains(s, ";") && strings.Contains(s, "|") {
			return "mixed list delimiters"
		}
		sep := ","
		switch {
		case strings.Contains(s, ";"):
			sep = ";"
		case strings.Contains(s, "|"):
			sep = "|"
		}
		parts := strings.Split(s, sep)
		if len(parts) < 3 {
			continue
		}
		spaced := 0
		for _, p := range parts[1:] {
			if strings.HasPrefix(p, " ") {
				spaced++
			}
		}
		if spaced != 0 && spaced != len(parts)-1 {
			return "inconsistent spacing after delimiter"
		}
	}
	return ""
}

func balanced(s string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, r := range s {
		switch r {
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// validity checks that the extracted value fits the declared field type and
// a plausible range, giving partial credit for near-misses.
func validity(ref, ext any, ft types.FieldType, rng *types.NumericRange, now time.Time) types.DimensionResult {
	if value.IsEmpty(ext) {
		if value.IsEmpty(ref) {
			return dimension(1, nil)
		}
		return dimension(0, []string{"value missing"})
	}

	switch ft {
	case types.FieldNumber:
		return numberValidity(ext, rng)
	case types.FieldDate:
		return dateValidity(ext, now)
	case types.FieldResource:
		return resourceValidity(ext)
	case types.FieldList:
		if isSlice(ext) {
			return dimension(1, nil)
		}
		if _, ok := value.Fields(ext); ok {
			return dimension(0, []string{"structured value where list expected"})
		}
		if s, ok := ext.(string); ok && len(value.SplitList(s)) > 1 {
			return dimension(1, nil)
		}
		return dimension(0.75, []string{"single value where list expected"})
	case types.FieldStructured:
		if _, ok := value.Fields(ext); ok {
			return dimension(1, nil)
		}
		if _, ok := asFields(ext); ok {
			return dimension(0.75, []string{"structured value encoded as text"})
		}
		return dimension(0, []string{"expected structured value"})
	default:
		switch ext.(type) {
		case string:
			return dimension(1, nil)
		}
		if _, ok := value.Fields(ext); ok {
			return dimension(0, []string{"structured value where text expected"})
		}
		return dimension(0.5, []string{fmt.Sprintf("expected text, got %T", ext)})
	}
}

func numberValidity(ext any, rng *types.NumericRange) types.DimensionResult {
	var f float64
	switch t := ext.(type) {
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			if numericPrefix.MatchString(s) {
				return dimension(0.75, []string{"numeric value with trailing text"})
			}
			return dimension(0, []string{"not a number"})
		}
		f = parsed
	default:
		rv := reflect.ValueOf(ext)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return dimension(0, []string{"not a number"})
		}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return dimension(0.5, []string{"non-finite number"})
	}
	if rng != nil && !rng.Contains(f) {
		return dimension(0.5, []string{fmt.Sprintf("out of plausible range [%g, %g]", rng.Min, rng.Max)})
	}
	return dimension(1, nil)
}

func dateValidity(ext any, now time.Time) types.DimensionResult {
	plausible := func(year int) bool {
		return year >= 1900 && year <= now.Year()+1
	}

	switch t := ext.(type) {
	case time.Time:
		if plausible(t.Year()) {
			return dimension(1, nil)
		}
		return dimension(0.5, []string{"implausible year"})
	case int:
		if plausible(t) {
			return dimension(0.75, []string{"year only"})
		}
		return dimension(0, []string{"unrecognized date"})
	case string:
		s := strings.TrimSpace(t)
		if yearOnly.MatchString(s) {
			y, _ := strconv.Atoi(s)
			if plausible(y) {
				return dimension(0.75, []string{"year only"})
			}
			return dimension(0.5, []string{"implausible year"})
		}
		if d, _, ok := value.ParseDate(s); ok {
			if plausible(d.Year()) {
				return dimension(1, nil)
			}
			return dimension(0.5, []string{"implausible year"})
		}
	}
	return dimension(0, []string{"unrecognized date"})
}

func resourceValidity(ext any) types.DimensionResult {
	s, ok := ext.(string)
	if !ok {
		return dimension(0, []string{"resource is not a string"})
	}
	s = strings.TrimSpace(s)
	switch {
	case doiPattern.MatchString(s), resourceID.MatchString(s):
		return dimension(1, nil)
	case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
		if bareHost.MatchString(strings.SplitN(s, "://", 2)[1]) {
			return dimension(1, nil)
		}
		return dimension(0, []string{"malformed URL"})
	case bareHost.MatchString(s):
		return dimension(0.5, []string{"missing URL scheme"})
	}
	return dimension(0, []string{"not a resource identifier"})
}

// asFields returns v as a map, decoding JSON object strings.
func asFields(v any) (map[string]any, bool) {
	if m, ok := value.Fields(v); ok {
		return m, true
	}
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

func isSlice(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// itemList returns the items of a list value, or the single text of a scalar.
func itemList(v any) []string {
	if items, ok := value.Items(v); ok || len(items) > 0 {
		return items
	}
	if value.IsEmpty(v) {
		return nil
	}
	s, err := value.Text(v, types.FieldText)
	if err != nil || s == "" {
		return nil
	}
	return []string{s}
}
