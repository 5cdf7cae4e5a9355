package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes one bulk merge into a target table.
type UpsertConfig struct {
	// Table is the merge target, optionally schema-qualified.
	Table string

	// Columns lists every column present in the staged rows, in row order.
	Columns []string

	// ConflictKeys are the columns of the unique constraint the merge
	// resolves on.
	ConflictKeys []string

	// UpdateCols are the columns rewritten from the staged row when the
	// constraint matches. Key and identity columns stay untouched by
	// leaving them out.
	UpdateCols []string
}

func (cfg UpsertConfig) validate() error {
	if cfg.Table == "" {
		return eris.New("db: upsert: empty table")
	}
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	if len(cfg.UpdateCols) == 0 {
		return eris.New("db: upsert: no update columns specified")
	}
	return nil
}

// BulkUpsert merges rows into cfg.Table in one transaction: the rows travel
// by COPY into a session staging table, then a single INSERT ... ON CONFLICT
// folds them into the target. The staging table drops with the transaction.
// Returns the number of rows written, inserts and updates combined.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := stagingTableFor(cfg.Table)

	if _, err := tx.Exec(ctx, buildStagingSQL(cfg.Table, staging)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy rows for %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, buildMergeSQL(cfg, staging))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit")
	}
	return tag.RowsAffected(), nil
}

// stagingTableFor derives the session-local staging table name. Dots from a
// schema-qualified target are flattened so the name stays a bare identifier.
func stagingTableFor(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

func buildStagingSQL(table, staging string) string {
	return fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(),
		sanitizeTable(table),
	)
}

func buildMergeSQL(cfg UpsertConfig, staging string) string {
	cols := quoteAndJoin(cfg.Columns)
	assignments := make([]string, len(cfg.UpdateCols))
	for i, col := range cfg.UpdateCols {
		q := pgx.Identifier{col}.Sanitize()
		assignments[i] = q + " = EXCLUDED." + q
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(cfg.Table),
		cols,
		cols,
		pgx.Identifier{staging}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		strings.Join(assignments, ", "),
	)
}

// sanitizeTable quotes a table name, keeping schema qualification intact.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
