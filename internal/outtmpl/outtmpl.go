package outtmpl

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fieldPattern matches %(name)spec where spec is a printf-style conversion
// with optional flags, width, and precision.
var fieldPattern = regexp.MustCompile(`%\(([A-Za-z0-9_]+)\)([-+ #0-9.]*)([diouxXeEfFgGcrsa])`)

// Substitute replaces every %(field)spec occurrence for the given field with
// value formatted by spec. Other fields are left for yt-dlp to fill. When the
// value cannot be formatted with the requested conversion, its plain string
// form is used instead.
func Substitute(tmpl, field string, value any) string {
	return SubstituteAll(tmpl, map[string]any{field: value})
}

// SubstituteAll replaces every field present in fields. Unknown fields are
// left in place.
func SubstituteAll(tmpl string, fields map[string]any) string {
	if len(fields) == 0 || !strings.Contains(tmpl, "%(") {
		return tmpl
	}
	return fieldPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		parts := fieldPattern.FindStringSubmatch(match)
		value, ok := fields[parts[1]]
		if !ok {
			return match
		}
		return format(parts[2], parts[3][0], value)
	})
}

// SubstitutePrefixed substitutes every field whose name starts with prefix.
func SubstitutePrefixed(tmpl, prefix string, fields map[string]any) string {
	selected := make(map[string]any)
	for key, value := range fields {
		if strings.HasPrefix(key, prefix) {
			selected[key] = value
		}
	}
	return SubstituteAll(tmpl, selected)
}

// Fields lists the field names referenced by tmpl, sorted and de-duplicated.
func Fields(tmpl string) []string {
	seen := map[string]struct{}{}
	for _, m := range fieldPattern.FindAllStringSubmatch(tmpl, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func format(flags string, verb byte, value any) string {
	switch verb {
	case 'd', 'i', 'u':
		if n, ok := asInt(value); ok {
			return fmt.Sprintf("%"+flags+"d", n)
		}
	case 'o', 'x', 'X':
		if n, ok := asInt(value); ok {
			return fmt.Sprintf("%"+flags+string(verb), n)
		}
	case 'e', 'E', 'f', 'F', 'g', 'G':
		if f, ok := asFloat(value); ok {
			return fmt.Sprintf("%"+flags+string(verb), f)
		}
	case 'c':
		if n, ok := asInt(value); ok && n >= 0 && n <= math.MaxInt32 {
			return fmt.Sprintf("%"+flags+"c", rune(n))
		}
	default:
		return fmt.Sprintf("%"+flags+"s", plain(value))
	}
	return plain(value)
}

// plain renders a value as a single path component.
func plain(value any) string {
	var s string
	switch v := value.(type) {
	case nil:
		s = "NA"
	case string:
		s = v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			s = strconv.FormatInt(int64(v), 10)
		} else {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		}
	default:
		s = fmt.Sprint(v)
	}
	s = norm.NFC.String(s)
	return strings.NewReplacer("/", "⧸", "\x00", "").Replace(s)
}

func asInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
