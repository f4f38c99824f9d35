package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"devleads/models"
	"devleads/utils"
)

// HistoryStore is a JSON-file key-value store of price history keyed by URL.
// It is loaded wholesale on open and rewritten wholesale on Save.
type HistoryStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]models.PriceHistoryEntry
}

// OpenHistoryStore loads path. A missing file is an empty store. A corrupt
// file is logged and replaced on the next Save.
func OpenHistoryStore(path string, logger *utils.Logger) (*HistoryStore, error) {
	s := &HistoryStore{path: path, entries: make(map[string]models.PriceHistoryEntry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, eris.Wrap(err, "history: read")
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		logger.Error("[history] Ignoring unreadable price history %s: %v", path, err)
		s.entries = make(map[string]models.PriceHistoryEntry)
	}
	return s, nil
}

func (s *HistoryStore) Get(url string) (models.PriceHistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[url]
	return e, ok
}

func (s *HistoryStore) Put(url string, entry models.PriceHistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[url] = entry
}

// Len is the number of tracked listings.
func (s *HistoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Save writes the whole store to a temp file and renames it over the
// original, so a crash never leaves a truncated file.
func (s *HistoryStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "history: encode")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrap(err, "history: create dir")
	}

	tmp, err := os.CreateTemp(dir, ".price_history-*.json")
	if err != nil {
		return eris.Wrap(err, "history: create temp")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrap(err, "history: write temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "history: close temp")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrap(err, "history: rename")
	}
	return nil
}
