package storage

import (
	"context"

	"devleads/models"
)

// RecordWriter is the interface any relational backend must satisfy.
type RecordWriter interface {
	// Upsert appends records, widening the table first. It returns the number
	// of rows written.
	Upsert(ctx context.Context, records []*models.Property) (int, error)
	// Migrate ensures the expected column set exists and returns the columns
	// it added.
	Migrate(ctx context.Context) ([]string, error)
	Close() error
}

// Spreadsheet is the remote mirror of the latest run.
type Spreadsheet interface {
	// Upload replaces the data rows with records, writing a fresh header.
	Upload(ctx context.Context, records []*models.Property) error
	// Clear removes every data row and keeps the header.
	Clear(ctx context.Context) error
	// Read returns the data rows keyed by header.
	Read(ctx context.Context) ([]map[string]string, error)
	// URL is the human link to the sheet.
	URL() string
}
