package storage

import (
	"context"
	"fmt"

	"github.com/goliatone/go-meta-query/metatype"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// CreateTable creates the meta table of d and its object and key indexes
// when they do not exist yet.
func CreateTable(ctx context.Context, db bun.IDB, d *metatype.Descriptor) error {
	pk, fk := "INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER"
	if db.Dialect().Name() == dialect.PG {
		pk, fk = "BIGSERIAL PRIMARY KEY", "BIGINT"
	}

	c := d.Columns
	stmts := []struct {
		query string
		args  []any
	}{
		{
			query: "CREATE TABLE IF NOT EXISTS ? (? " + pk + ", ? " + fk + " NOT NULL DEFAULT 0, ? VARCHAR(255), ? TEXT)",
			args:  []any{bun.Ident(d.TableName), bun.Ident(c.MetaID), bun.Ident(c.ObjectID), bun.Ident(c.MetaKey), bun.Ident(c.MetaValue)},
		},
		{
			query: "CREATE INDEX IF NOT EXISTS ? ON ? (?)",
			args:  []any{bun.Ident(d.TableName + "_" + c.ObjectID + "_idx"), bun.Ident(d.TableName), bun.Ident(c.ObjectID)},
		},
		{
			query: "CREATE INDEX IF NOT EXISTS ? ON ? (?)",
			args:  []any{bun.Ident(d.TableName + "_" + c.MetaKey + "_idx"), bun.Ident(d.TableName), bun.Ident(c.MetaKey)},
		},
	}

	for _, stmt := range stmts {
		if _, err := db.NewRaw(stmt.query, stmt.args...).Exec(ctx); err != nil {
			return fmt.Errorf("storage: create %s: %w", d.TableName, err)
		}
	}
	return nil
}

// DropTable removes the meta table of d.
func DropTable(ctx context.Context, db bun.IDB, d *metatype.Descriptor) error {
	if _, err := db.NewDropTable().TableExpr("?", bun.Ident(d.TableName)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("storage: drop %s: %w", d.TableName, err)
	}
	return nil
}
