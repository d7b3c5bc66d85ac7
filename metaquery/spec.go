package metaquery

import (
	"strings"

	"github.com/goliatone/go-meta-query/cache"
)

// Projections accepted in Spec.Fields.
const (
	FieldsAll = ""
	FieldsIDs = "ids"
)

// OrderByNone disables ORDER BY when it is the only orderby field.
const OrderByNone = "none"

const (
	orderAsc  = "ASC"
	orderDesc = "DESC"
)

// OrderField is one ORDER BY term. An empty Order falls back to Spec.Order.
type OrderField struct {
	Field string `key:"field"`
	Order string `key:"order"`
}

// Spec is a structured meta query. Its fields are the complete set of
// inputs that reach the result cache fingerprint.
//
// Exact id filters set to zero and exact string filters set to "" are
// ignored. Number zero means no limit.
type Spec struct {
	Fields string `key:"fields"`

	MetaID      uint64   `key:"meta_id"`
	MetaIDIn    []uint64 `key:"meta_id__in"`
	MetaIDNotIn []uint64 `key:"meta_id__not_in"`

	ObjectID      uint64   `key:"object_id"`
	ObjectIDIn    []uint64 `key:"object_id__in"`
	ObjectIDNotIn []uint64 `key:"object_id__not_in"`

	Key      string   `key:"key"`
	KeyIn    []string `key:"key__in"`
	KeyNotIn []string `key:"key__not_in"`

	Value      string   `key:"value"`
	ValueIn    []string `key:"value__in"`
	ValueNotIn []string `key:"value__not_in"`

	Search        string   `key:"search"`
	SearchColumns []string `key:"search_columns"`

	OrderBy []OrderField `key:"orderby"`
	Order   string       `key:"order"`

	Number int `key:"number"`
	Offset int `key:"offset"`
	// Paged is a 1-indexed page number used when Offset is zero.
	Paged int `key:"paged"`

	Count       bool `key:"count"`
	NoFoundRows bool `key:"no_found_rows"`

	// NoUpdateCache skips the batch warm of the entity cache before
	// resolving entities.
	NoUpdateCache bool `key:"no_update_meta_cache"`
}

// DefaultSpec returns the defaults every query starts from.
func DefaultSpec() Spec {
	return Spec{
		Number:  100,
		OrderBy: []OrderField{{Field: "meta_id"}},
		Order:   orderAsc,
	}
}

// ParseOrderBy splits a space or comma separated orderby list. A direction
// keyword following a field applies to that field.
func ParseOrderBy(s string) []OrderField {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	var out []OrderField
	for _, tok := range tokens {
		switch upper := strings.ToUpper(tok); upper {
		case orderAsc, orderDesc:
			if len(out) > 0 && out[len(out)-1].Order == "" {
				out[len(out)-1].Order = upper
				continue
			}
		}
		out = append(out, OrderField{Field: tok})
	}
	return out
}

func parseOrder(order string) string {
	if strings.EqualFold(strings.TrimSpace(order), orderDesc) {
		return orderDesc
	}
	return orderAsc
}

// unordered reports whether a normalized spec disables ORDER BY.
func (s Spec) unordered() bool {
	return len(s.OrderBy) == 0 || (len(s.OrderBy) == 1 && s.OrderBy[0].Field == OrderByNone)
}

// limits returns the effective limit and offset.
func (s Spec) limits() (number, offset int) {
	number, offset = abs(s.Number), abs(s.Offset)
	if paged := abs(s.Paged); offset == 0 && paged > 1 && number > 0 {
		offset = (paged - 1) * number
	}
	return number, offset
}

// normalized returns a canonical copy: directions upper-cased, lists
// without duplicates, a nil orderby replaced by the default.
func (s Spec) normalized() Spec {
	n := s
	n.Fields = strings.ToLower(strings.TrimSpace(s.Fields))
	if n.Fields != FieldsIDs {
		n.Fields = FieldsAll
	}

	n.MetaIDIn = idList(s.MetaIDIn)
	n.MetaIDNotIn = idList(s.MetaIDNotIn)
	n.ObjectIDIn = idList(s.ObjectIDIn)
	n.ObjectIDNotIn = idList(s.ObjectIDNotIn)
	n.KeyIn = stringList(s.KeyIn)
	n.KeyNotIn = stringList(s.KeyNotIn)
	n.ValueIn = stringList(s.ValueIn)
	n.ValueNotIn = stringList(s.ValueNotIn)

	n.Order = parseOrder(s.Order)
	if s.OrderBy == nil {
		n.OrderBy = []OrderField{{Field: "meta_id"}}
	} else {
		n.OrderBy = make([]OrderField, 0, len(s.OrderBy))
		for _, f := range s.OrderBy {
			if f.Field == "" {
				continue
			}
			o := ""
			if f.Order != "" {
				o = parseOrder(f.Order)
			}
			n.OrderBy = append(n.OrderBy, OrderField{Field: f.Field, Order: o})
		}
		if len(n.OrderBy) == 0 {
			n.OrderBy = []OrderField{{Field: OrderByNone}}
		}
	}

	n.Number, n.Offset = abs(s.Number), abs(s.Offset)
	n.Paged = abs(s.Paged)
	return n
}

// Fingerprint hashes the normalized spec for objectType.
func (s Spec) Fingerprint(serializer cache.KeySerializer, objectType string) string {
	return cache.Fingerprint(serializer, "metaquery:"+objectType, s.normalized())
}

func idList(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func stringList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
