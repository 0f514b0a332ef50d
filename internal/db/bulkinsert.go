package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// InsertIgnore bulk-inserts rows, skipping any that conflict on the key
// columns. It stages rows through a temp table with COPY, then moves them
// with INSERT ... ON CONFLICT DO NOTHING. Returns the number of rows that
// actually landed.
func InsertIgnore(ctx context.Context, pool Pool, table string, columns, conflictKeys []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, eris.New("db: insert-ignore: no columns specified")
	}
	if len(conflictKeys) == 0 {
		return 0, eris.New("db: insert-ignore: no conflict keys specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: insert-ignore: begin tx")
	}
	defer tx.Rollback(ctx)

	tempTable := "_tmp_insert_" + strings.ReplaceAll(table, ".", "_")

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		tempTable, table,
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: insert-ignore: create temp table for %s", table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: insert-ignore: COPY INTO %s", tempTable)
	}

	cols := strings.Join(columns, ", ")
	moveSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING",
		table, cols, cols, tempTable, strings.Join(conflictKeys, ", "),
	)
	tag, err := tx.Exec(ctx, moveSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: insert-ignore: move into %s", table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: insert-ignore: commit")
	}
	return tag.RowsAffected(), nil
}
