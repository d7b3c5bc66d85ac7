package metaquery

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

var listSeparator = regexp.MustCompile(`[\s,]+`)

// ParseArgs builds a Spec from a loose argument map, starting from
// DefaultSpec. Values are coerced rather than rejected: a malformed id
// becomes 0 and negative numbers become positive. Unknown keys are ignored.
func ParseArgs(args map[string]any) Spec {
	s := DefaultSpec()

	for key, v := range args {
		switch strings.ToLower(key) {
		case "fields":
			s.Fields = cast.ToString(v)

		case "meta_id", "id":
			s.MetaID = toID(v)
		case "meta_id__in":
			s.MetaIDIn = toIDs(v)
		case "meta_id__not_in":
			s.MetaIDNotIn = toIDs(v)

		case "object_id":
			s.ObjectID = toID(v)
		case "object_id__in":
			s.ObjectIDIn = toIDs(v)
		case "object_id__not_in":
			s.ObjectIDNotIn = toIDs(v)

		case "key", "meta_key":
			s.Key = cast.ToString(v)
		case "key__in", "meta_key__in":
			s.KeyIn = toStrings(v)
		case "key__not_in", "meta_key__not_in":
			s.KeyNotIn = toStrings(v)

		case "value", "meta_value":
			s.Value = cast.ToString(v)
		case "value__in", "meta_value__in":
			s.ValueIn = toStrings(v)
		case "value__not_in", "meta_value__not_in":
			s.ValueNotIn = toStrings(v)

		case "search":
			s.Search = strings.TrimSpace(cast.ToString(v))
		case "search_columns":
			s.SearchColumns = toStrings(v)

		case "orderby":
			s.OrderBy = toOrderBy(v)
		case "order":
			s.Order = cast.ToString(v)

		case "number":
			s.Number = abs(cast.ToInt(v))
		case "offset":
			s.Offset = abs(cast.ToInt(v))
		case "paged":
			s.Paged = abs(cast.ToInt(v))

		case "count":
			s.Count = cast.ToBool(v)
		case "no_found_rows":
			s.NoFoundRows = cast.ToBool(v)
		case "update_meta_cache", "update_cache":
			s.NoUpdateCache = !cast.ToBool(v)
		}
	}

	return s
}

func toID(v any) uint64 {
	n := cast.ToInt64(v)
	if n < 0 {
		n = -n
	}
	return uint64(n)
}

func toIDs(v any) []uint64 {
	items := listItems(v)
	if len(items) == 0 {
		return nil
	}
	out := make([]uint64, len(items))
	for i, item := range items {
		out[i] = toID(item)
	}
	return out
}

func toStrings(v any) []string {
	items := listItems(v)
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(cast.ToString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// listItems accepts any slice or array, or a string split on commas and
// whitespace. A scalar is a list of one.
func listItems(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		var out []any
		for _, part := range listSeparator.Split(t, -1) {
			if part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// toOrderBy accepts a field list string, a field to direction map, or a
// list of field names. false or an empty list disables ordering.
func toOrderBy(v any) []OrderField {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if !t {
			return []OrderField{}
		}
		return nil
	case string:
		return ParseOrderBy(t)
	case []OrderField:
		return t
	}

	if m, err := cast.ToStringMapStringE(v); err == nil && reflect.ValueOf(v).Kind() == reflect.Map {
		fields := make([]string, 0, len(m))
		for field := range m {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		out := make([]OrderField, 0, len(m))
		for _, field := range fields {
			out = append(out, OrderField{Field: field, Order: m[field]})
		}
		return out
	}

	items := listItems(v)
	out := make([]OrderField, 0, len(items))
	for _, item := range items {
		if field := strings.TrimSpace(cast.ToString(item)); field != "" {
			out = append(out, OrderField{Field: field})
		}
	}
	return out
}
