package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"devleads/models"
)

// CSVWriter writes records to a CSV file with a header derived from the
// batch's columns. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "csv: create output dir")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: create file %q", path)
	}
	return &CSVWriter{path: path, file: f, writer: csv.NewWriter(f)}, nil
}

// Write writes the header and one row per record.
func (c *CSVWriter) Write(records []*models.Property) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cols := models.Columns(records)
	if err := c.writer.Write(cols); err != nil {
		return eris.Wrap(err, "csv: write header")
	}

	for _, r := range records {
		row := r.Row()
		line := make([]string, len(cols))
		for i, col := range cols {
			line[i] = cellString(row[col])
		}
		if err := c.writer.Write(line); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Path is the file being written.
func (c *CSVWriter) Path() string { return c.path }

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// WriteCSVFile writes records to path in one call.
func WriteCSVFile(path string, records []*models.Property) error {
	w, err := NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
