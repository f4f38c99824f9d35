package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/utils"
)

// dialect captures what differs between the relational backends.
type dialect struct {
	name        string
	createTable string
	// foldCase is set when column names compare case-insensitively.
	foldCase    bool
	columnTypes map[string]string
	listColumns func(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error)
	insert      func(ctx context.Context, db *sql.DB, table string, b batch) error
}

// sqlTable is an append-only table that grows a column for every new field.
type sqlTable struct {
	db     *sql.DB
	table  string
	d      dialect
	logger *utils.Logger
}

func (t *sqlTable) ensureTable(ctx context.Context) error {
	q := fmt.Sprintf(t.d.createTable, quoteIdent(t.table))
	if _, err := t.db.ExecContext(ctx, q); err != nil {
		return eris.Wrapf(err, "%s: create table %s", t.d.name, t.table)
	}
	return nil
}

// widen adds every column in want that the table lacks and returns the names
// added, sorted.
func (t *sqlTable) widen(ctx context.Context, want map[string]string) ([]string, error) {
	if err := t.ensureTable(ctx); err != nil {
		return nil, err
	}
	existing, err := t.d.listColumns(ctx, t.db, t.table)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: list columns", t.d.name)
	}

	if t.d.foldCase {
		lowered := make(map[string]struct{}, len(existing))
		for col := range existing {
			lowered[strings.ToLower(col)] = struct{}{}
		}
		existing = lowered
	}

	var missing []string
	for col := range want {
		key := col
		if t.d.foldCase {
			key = strings.ToLower(col)
		}
		if _, ok := existing[key]; !ok {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)

	for _, col := range missing {
		q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			quoteIdent(t.table), quoteIdent(col), t.d.columnTypes[want[col]])
		if _, err := t.db.ExecContext(ctx, q); err != nil {
			return nil, eris.Wrapf(err, "%s: add column %s", t.d.name, col)
		}
		t.logger.Debug("[%s] Added column %s %s", t.d.name, col, want[col])
	}
	return missing, nil
}

// Upsert widens the table then appends records, deduplicated by URL within
// the batch.
func (t *sqlTable) Upsert(ctx context.Context, records []*models.Property) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	b := newBatch(records, t.d.foldCase)

	added, err := t.widen(ctx, b.types)
	if err != nil {
		return 0, err
	}
	if len(added) > 0 {
		t.logger.Info("[%s] Widened %s with %d columns: %s", t.d.name, t.table, len(added), strings.Join(added, ", "))
	}

	if err := t.d.insert(ctx, t.db, t.table, b); err != nil {
		return 0, eris.Wrapf(err, "%s: insert", t.d.name)
	}
	t.logger.Info("[%s] Inserted %d rows into %s", t.d.name, len(b.rows), t.table)
	return len(b.rows), nil
}

// Migrate ensures every expected column exists.
func (t *sqlTable) Migrate(ctx context.Context) ([]string, error) {
	return t.widen(ctx, ExpectedColumns)
}

// Count returns the number of stored rows.
func (t *sqlTable) Count(ctx context.Context) (int, error) {
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(t.table))
	if err := t.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "%s: count", t.d.name)
	}
	return n, nil
}

func (t *sqlTable) Close() error {
	return t.db.Close()
}

func rowArgs(cols []string, row map[string]any) []any {
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		args = append(args, sqlValue(row[c]))
	}
	return args
}

func quotedList(cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = quoteIdent(c)
	}
	return strings.Join(q, ",")
}
