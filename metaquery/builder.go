package metaquery

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-meta-query/metatype"
	"github.com/uptrace/bun"
)

type clause struct {
	query string
	args  []any
}

// builder turns a normalized Spec into WHERE, ORDER BY and LIMIT clauses
// for one descriptor. Clauses are keyed by filter dimension; a
// single-element IN list takes the key of the exact match on the same
// column, replacing it.
type builder struct {
	d     *metatype.Descriptor
	spec  Spec
	keys  []string
	where map[string]clause
}

func newBuilder(d *metatype.Descriptor, spec Spec) *builder {
	b := &builder{d: d, spec: spec, where: make(map[string]clause)}
	b.build()
	return b
}

func (b *builder) set(key, query string, args ...any) {
	if _, ok := b.where[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.where[key] = clause{query: query, args: args}
}

func (b *builder) build() {
	s := b.spec
	c := b.d.Columns

	idFilter(b, "meta_id", c.MetaID, s.MetaID, s.MetaIDIn, s.MetaIDNotIn)
	idFilter(b, "object_id", c.ObjectID, s.ObjectID, s.ObjectIDIn, s.ObjectIDNotIn)
	stringFilter(b, "key", c.MetaKey, s.Key, s.KeyIn, s.KeyNotIn)
	stringFilter(b, "value", c.MetaValue, s.Value, s.ValueIn, s.ValueNotIn)

	if s.Search != "" {
		b.search(s.Search, b.searchColumns())
	}
}

func idFilter(b *builder, key, column string, exact uint64, in, notIn []uint64) {
	if exact != 0 {
		b.set(key, "? = ?", bun.Ident(column), exact)
	}
	switch len(in) {
	case 0:
	case 1:
		b.set(key, "? = ?", bun.Ident(column), in[0])
	default:
		b.set(key+"__in", "? IN (?)", bun.Ident(column), bun.In(in))
	}
	if len(notIn) > 0 {
		b.set(key+"__not_in", "? NOT IN (?)", bun.Ident(column), bun.In(notIn))
	}
}

func stringFilter(b *builder, key, column, exact string, in, notIn []string) {
	if exact != "" {
		b.set(key, "? = ?", bun.Ident(column), exact)
	}
	switch len(in) {
	case 0:
	case 1:
		b.set(key, "? = ?", bun.Ident(column), in[0])
	default:
		b.set(key+"__in", "? IN (?)", bun.Ident(column), bun.In(in))
	}
	if len(notIn) > 0 {
		b.set(key+"__not_in", "? NOT IN (?)", bun.Ident(column), bun.In(notIn))
	}
}

// searchColumns resolves the requested columns against the descriptor and
// falls back to every mapped column.
func (b *builder) searchColumns() []string {
	var columns []string
	seen := make(map[string]bool)
	for _, field := range b.spec.SearchColumns {
		column, ok := b.d.Column(field)
		if !ok || seen[column] {
			continue
		}
		seen[column] = true
		columns = append(columns, column)
	}
	if len(columns) == 0 {
		return b.d.Columns.All()
	}
	return columns
}

func (b *builder) search(term string, columns []string) {
	pattern := likePattern(term)

	parts := make([]string, len(columns))
	args := make([]any, 0, 2*len(columns))
	for i, column := range columns {
		parts[i] = "CAST(? AS TEXT) LIKE ? ESCAPE '!'"
		args = append(args, bun.Ident(column), pattern)
	}
	b.set("search", "("+strings.Join(parts, " OR ")+")", args...)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern wraps term in wildcards. A '*' in term matches any run of
// characters; LIKE metacharacters in term match literally.
func likePattern(term string) string {
	segments := strings.Split(term, "*")
	for i, seg := range segments {
		segments[i] = likeEscaper.Replace(seg)
	}
	return "%" + strings.Join(segments, "%") + "%"
}

func (b *builder) applyWhere(q *bun.SelectQuery) *bun.SelectQuery {
	for _, key := range b.keys {
		c := b.where[key]
		q = q.Where(c.query, c.args...)
	}
	return q
}

func (b *builder) applyOrder(q *bun.SelectQuery) *bun.SelectQuery {
	if b.spec.unordered() {
		return q
	}

	pk := b.d.Columns.MetaID
	terms, hasPK := 0, false

	for _, f := range b.spec.OrderBy {
		dir := f.Order
		if dir == "" {
			dir = b.spec.Order
		}

		if field, ok := strings.CutSuffix(f.Field, "__in"); ok {
			role, ok := b.d.Resolve(field)
			if !ok {
				continue
			}
			expr, args := b.matchOrder(role)
			if expr == "" {
				continue
			}
			q = q.OrderExpr(expr, args...)
			terms++
			continue
		}

		column, ok := b.d.Column(f.Field)
		if !ok {
			continue
		}
		q = q.OrderExpr("? "+dir, bun.Ident(column))
		terms++
		hasPK = hasPK || column == pk
	}

	if terms == 0 {
		q = q.OrderExpr("? "+b.spec.Order, bun.Ident(pk))
		hasPK = true
	}
	if !hasPK {
		q = q.OrderExpr("? ASC", bun.Ident(pk))
	}
	return q
}

// matchOrder orders rows by their position in the IN list of role.
func (b *builder) matchOrder(role metatype.Role) (string, []any) {
	var values []any
	switch role {
	case metatype.RoleMetaID:
		values = anySlice(b.spec.MetaIDIn)
	case metatype.RoleObjectID:
		values = anySlice(b.spec.ObjectIDIn)
	case metatype.RoleMetaKey:
		values = anySlice(b.spec.KeyIn)
	case metatype.RoleMetaValue:
		values = anySlice(b.spec.ValueIn)
	}
	if len(values) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("CASE ?")
	args := make([]any, 0, len(values)+1)
	args = append(args, bun.Ident(b.d.Columns.Column(role)))
	for i, v := range values {
		sb.WriteString(" WHEN ? THEN ")
		sb.WriteString(strconv.Itoa(i))
		args = append(args, v)
	}
	sb.WriteString(" ELSE ")
	sb.WriteString(strconv.Itoa(len(values)))
	sb.WriteString(" END")
	return sb.String(), args
}

func (b *builder) applyLimit(q *bun.SelectQuery) *bun.SelectQuery {
	number, offset := b.spec.limits()
	if number == 0 {
		return q
	}
	q = q.Limit(number)
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func anySlice[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
