package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"

	"devleads/utils"
)

const postgresBatchSize = 50

var postgresDialect = dialect{
	name:        "postgres",
	createTable: "CREATE TABLE IF NOT EXISTS %s (id BIGSERIAL PRIMARY KEY, url TEXT)",
	columnTypes: map[string]string{typeInteger: "BIGINT", typeReal: "DOUBLE PRECISION", typeText: "TEXT"},
	listColumns: postgresColumns,
	insert:      postgresInsert,
}

// PostgresWriter persists leads to PostgreSQL.
type PostgresWriter struct {
	sqlTable
}

// NewPostgresWriter opens a connection to PostgreSQL, waits for it to accept
// connections and makes sure the table exists.
func NewPostgresWriter(ctx context.Context, dsn, table string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}

	retry := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	pw := &PostgresWriter{sqlTable{db: db, table: table, d: postgresDialect, logger: logger}}
	if err := pw.ensureTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return pw, nil
}

func postgresColumns(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`,
		table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

func postgresInsert(ctx context.Context, db *sql.DB, table string, b batch) error {
	for i := 0; i < len(b.rows); i += postgresBatchSize {
		end := i + postgresBatchSize
		if end > len(b.rows) {
			end = len(b.rows)
		}
		query, args := postgresInsertBatch(table, b.cols, b.rows[i:end])
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// postgresInsertBatch builds one multi-row INSERT with $n placeholders.
func postgresInsertBatch(table string, cols []string, rows []map[string]any) (string, []any) {
	valueStrings := make([]string, 0, len(rows))
	valueArgs := make([]any, 0, len(rows)*len(cols))

	for idx, row := range rows {
		base := idx * len(cols)
		ph := make([]string, len(cols))
		for j := range cols {
			ph[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs, rowArgs(cols, row)...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(table), quotedList(cols), strings.Join(valueStrings, ","))
	return query, valueArgs
}
