package storage

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/goliatone/go-meta-query/meta"
	"github.com/goliatone/go-meta-query/metatype"
	"github.com/uptrace/bun"
)

// Bun implements meta.Storage on a bun handle. Table and column names come
// from the descriptor and are always quoted with bun.Ident.
type Bun struct {
	db bun.IDB
}

var _ meta.Storage = (*Bun)(nil)

// New returns a Storage running on db, which may be a *bun.DB or a bun.Tx.
func New(db bun.IDB) *Bun {
	return &Bun{db: db}
}

func (s *Bun) selectColumns(d *metatype.Descriptor) *bun.SelectQuery {
	q := s.db.NewSelect().TableExpr("?", bun.Ident(d.TableName))
	for _, column := range d.Columns.All() {
		q = q.ColumnExpr("?", bun.Ident(column))
	}
	return q
}

func (s *Bun) FetchRow(ctx context.Context, d *metatype.Descriptor, id uint64) (map[string]any, error) {
	row := make(map[string]any)
	err := s.selectColumns(d).
		Where("? = ?", bun.Ident(d.Columns.MetaID), id).
		Limit(1).
		Scan(ctx, &row)
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (s *Bun) FetchRows(ctx context.Context, d *metatype.Descriptor, ids []uint64) ([]map[string]any, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []map[string]any
	err := s.selectColumns(d).
		Where("? IN (?)", bun.Ident(d.Columns.MetaID), bun.In(ids)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Bun) Insert(ctx context.Context, d *metatype.Descriptor, values map[string]any) (uint64, error) {
	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	args := make([]any, 0, 2*len(columns)+2)
	args = append(args, bun.Ident(d.TableName))
	for _, column := range columns {
		args = append(args, bun.Ident(column))
	}
	for _, column := range columns {
		args = append(args, values[column])
	}
	args = append(args, bun.Ident(d.Columns.MetaID))

	var id uint64
	err := s.db.NewRaw(
		"INSERT INTO ? ("+placeholders+") VALUES ("+placeholders+") RETURNING ?",
		args...,
	).Scan(ctx, &id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Bun) Update(ctx context.Context, d *metatype.Descriptor, id uint64, values map[string]any) (int64, error) {
	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	q := s.db.NewUpdate().TableExpr("?", bun.Ident(d.TableName))
	for _, column := range columns {
		q = q.Set("? = ?", bun.Ident(column), values[column])
	}

	res, err := q.Where("? = ?", bun.Ident(d.Columns.MetaID), id).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Bun) Delete(ctx context.Context, d *metatype.Descriptor, id uint64) (int64, error) {
	res, err := s.db.NewDelete().
		TableExpr("?", bun.Ident(d.TableName)).
		Where("? = ?", bun.Ident(d.Columns.MetaID), id).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
