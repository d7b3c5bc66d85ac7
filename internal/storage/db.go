package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-meta-query/internal/metrics"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger used by the query hook.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records every query in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Open connects to the configured database and returns a bun handle with
// the query hook installed.
func Open(cfg Config, opts ...Option) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("storage: invalid config: %w", err)
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", cfg.Driver, err)
	}

	return Wrap(sqldb, cfg, opts...), nil
}

// Wrap builds a bun handle around an existing connection pool.
func Wrap(sqldb *sql.DB, cfg Config, opts ...Option) *bun.DB {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var db *bun.DB
	if cfg.Driver == DriverPostgres {
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	db.AddQueryHook(&QueryHook{logger: o.logger, metrics: o.metrics, verbose: cfg.Debug})
	return db
}

// QueryHook logs each query and feeds the storage metrics.
type QueryHook struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	verbose bool
}

var _ bun.QueryHook = (*QueryHook)(nil)

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)
	op := event.Operation()
	h.metrics.StorageQuery(op, took, event.Err)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("query", event.Query),
		zap.Duration("took", took),
	}
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed", append(fields, zap.Error(event.Err))...)
	case h.verbose:
		h.logger.Info("query", fields...)
	default:
		h.logger.Debug("query", fields...)
	}
}
