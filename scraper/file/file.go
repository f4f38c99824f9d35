// Package file replays listings from a JSON-Lines fixture, one object per
// line, for offline runs.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/scraper"
	"devleads/utils"
)

type Source struct {
	path   string
	logger *utils.Logger
}

func New(path string, logger *utils.Logger) *Source {
	return &Source{path: path, logger: logger}
}

func (s *Source) Name() string { return "file" }

// Fetch reads every object in the fixture. Lines that are not JSON objects
// are logged and skipped; location is not applied.
func (s *Source) Fetch(ctx context.Context, _ scraper.Location) ([]models.RawRecord, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "file: open %s", s.path)
	}
	defer f.Close()

	var records []models.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		rec := models.RawRecord{}
		if err := dec.Decode(&rec); err != nil {
			s.logger.Warn("[file] %s:%d skipped: %v", s.path, line, err)
			continue
		}
		if _, ok := rec["source"]; !ok {
			rec["source"] = s.Name()
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, eris.Wrapf(err, "file: read %s", s.path)
	}
	s.logger.Info("[file] Loaded %d records from %s", len(records), s.path)
	return records, nil
}
