package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out calls to a third-party service. Every Wait blocks until at
// least the configured interval has passed since the previous call.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one call per interval. A zero interval never blocks.
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// URLSet holds listing identities already seen in a run. Safe for
// concurrent use.
type URLSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewURLSet returns a set seeded with urls.
func NewURLSet(urls ...string) *URLSet {
	s := &URLSet{urls: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		s.urls[u] = struct{}{}
	}
	return s
}

// Add records url and reports whether it was new.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.urls[url]; dup {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

func (s *URLSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[url]
	return ok
}

func (s *URLSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
