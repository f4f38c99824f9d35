package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"devleads/utils"
)

var sqliteDialect = dialect{
	name:        "sqlite",
	createTable: "CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, url TEXT)",
	foldCase:    true,
	columnTypes: map[string]string{typeInteger: "INTEGER", typeReal: "REAL", typeText: "TEXT"},
	listColumns: sqliteColumns,
	insert:      sqliteInsert,
}

// SQLiteWriter persists leads to a local SQLite file.
type SQLiteWriter struct {
	sqlTable
}

// NewSQLiteWriter opens (creating if needed) the database at path and makes
// sure the table exists.
func NewSQLiteWriter(ctx context.Context, path, table string, logger *utils.Logger) (*SQLiteWriter, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	w := &SQLiteWriter{sqlTable{db: db, table: table, d: sqliteDialect, logger: logger}}
	if err := w.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

func sqliteInsert(ctx context.Context, db *sql.DB, table string, b batch) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	ph := strings.TrimRight(strings.Repeat("?,", len(b.cols)), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), quotedList(b.cols), ph))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range b.rows {
		if _, err := stmt.ExecContext(ctx, rowArgs(b.cols, row)...); err != nil {
			return err
		}
	}
	return tx.Commit()
}
