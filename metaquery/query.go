package metaquery

import (
	"context"

	"github.com/goliatone/go-meta-query/cache"
	"github.com/goliatone/go-meta-query/meta"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/goliatone/go-meta-query/objectcache"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Result is the outcome of one query.
type Result struct {
	// Metas holds resolved entities unless the query asked for ids or a count.
	Metas []meta.Entity `json:"metas,omitempty"`
	IDs   []uint64      `json:"ids,omitempty"`
	// Count is set by count queries.
	Count int64 `json:"count,omitempty"`

	FoundRows   int64 `json:"found_rows"`
	MaxNumPages int64 `json:"max_num_pages"`

	// Request is the SQL text executed, empty when served from cache.
	Request string `json:"request,omitempty"`
	Cached  bool   `json:"cached"`
}

// Option configures a Query.
type Option func(*Query)

// WithLogger sets the query logger.
func WithLogger(logger *zap.Logger) Option {
	return func(q *Query) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithKeySerializer sets the serializer used for spec fingerprints.
func WithKeySerializer(s cache.KeySerializer) Option {
	return func(q *Query) {
		if s != nil {
			q.serializer = s
		}
	}
}

// Query executes specs against the meta table of a type. Matching ids and
// found counts are cached per spec fingerprint and type token, so any write
// through the Store retires them.
type Query struct {
	db         bun.IDB
	store      *meta.Store
	types      *metatype.Registry
	serializer cache.KeySerializer
	logger     *zap.Logger
}

// New creates a Query over db resolving entities through store.
func New(db bun.IDB, store *meta.Store, opts ...Option) *Query {
	q := &Query{
		db:         db,
		store:      store,
		types:      store.Types(),
		serializer: cache.NewDefaultKeySerializer(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RunArgs parses args with ParseArgs and runs the resulting spec.
func (q *Query) RunArgs(ctx context.Context, objectType string, args map[string]any) (*Result, error) {
	return q.Run(ctx, objectType, ParseArgs(args))
}

// Run executes spec for objectType.
func (q *Query) Run(ctx context.Context, objectType string, spec Spec) (*Result, error) {
	d, err := q.types.Lookup(objectType)
	if err != nil {
		return nil, err
	}

	s := spec.normalized()
	fp := cache.Fingerprint(q.serializer, "metaquery:"+objectType, s)
	c := q.store.Cache()

	// The token is read before the SQL runs so a concurrent write retires
	// whatever this call caches.
	token := c.Token(ctx, objectType)

	res := &Result{}
	entry, hit := c.Result(ctx, objectType, fp, token)
	if !hit {
		entry, res.Request, err = q.fetch(ctx, d, s)
		if err != nil {
			return nil, err
		}
		c.AddResult(ctx, objectType, fp, token, entry)
	}
	res.Cached = hit
	res.FoundRows = entry.Found

	if number, _ := s.limits(); number > 0 && entry.Found > 0 {
		res.MaxNumPages = (entry.Found + int64(number) - 1) / int64(number)
	}

	if s.Count {
		res.Count = entry.Found
		return res, nil
	}

	res.IDs = entry.IDs
	if s.Fields == FieldsIDs || len(entry.IDs) == 0 {
		return res, nil
	}

	if !s.NoUpdateCache {
		if err := q.store.Prime(ctx, objectType, entry.IDs); err != nil {
			q.logger.Warn("meta cache prime failed",
				zap.String("object_type", objectType),
				zap.Int("ids", len(entry.IDs)),
				zap.Error(err),
			)
		}
	}

	res.Metas = make([]meta.Entity, 0, len(entry.IDs))
	for _, id := range entry.IDs {
		e, err := q.store.Resolve(ctx, objectType, id)
		if err != nil {
			if meta.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		res.Metas = append(res.Metas, e)
	}
	return res, nil
}

// fetch runs the SQL for a normalized spec. Count specs store the count in
// Entry.Found and no ids.
func (q *Query) fetch(ctx context.Context, d *metatype.Descriptor, s Spec) (objectcache.Entry, string, error) {
	b := newBuilder(d, s)

	if s.Count {
		found, sql, err := q.count(ctx, d, b)
		if err != nil {
			return objectcache.Entry{}, "", err
		}
		return objectcache.Entry{Found: found}, sql, nil
	}

	sel := q.db.NewSelect().
		TableExpr("?", bun.Ident(d.TableName)).
		ColumnExpr("?", bun.Ident(d.Columns.MetaID))
	sel = b.applyLimit(b.applyOrder(b.applyWhere(sel)))

	var ids []uint64
	if err := sel.Scan(ctx, &ids); err != nil {
		return objectcache.Entry{}, "", &meta.StorageError{ObjectType: d.ObjectType, Op: "query", Err: err}
	}

	found := int64(len(ids))
	if q.needsFoundRows(s, len(ids)) {
		n, _, err := q.count(ctx, d, b)
		if err != nil {
			return objectcache.Entry{}, "", err
		}
		found = n
	}

	return objectcache.Entry{IDs: ids, Found: found}, sel.String(), nil
}

// needsFoundRows reports whether the page may not hold every match.
func (q *Query) needsFoundRows(s Spec, got int) bool {
	number, offset := s.limits()
	if s.NoFoundRows || number == 0 || got == 0 {
		return false
	}
	return offset > 0 || got >= number
}

func (q *Query) count(ctx context.Context, d *metatype.Descriptor, b *builder) (int64, string, error) {
	sel := q.db.NewSelect().
		TableExpr("?", bun.Ident(d.TableName)).
		ColumnExpr("COUNT(*)")
	sel = b.applyWhere(sel)

	var n int64
	if err := sel.Scan(ctx, &n); err != nil {
		return 0, "", &meta.StorageError{ObjectType: d.ObjectType, Op: "count", Err: err}
	}
	return n, sel.String(), nil
}
