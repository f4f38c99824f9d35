package scraper

import (
	"context"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"

	"devleads/utils"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// HTTPFetcher downloads detail pages. Requests are paced and retried with
// backoff.
type HTTPFetcher struct {
	http  *resty.Client
	pacer *utils.Pacer
	retry *utils.RetryConfig
}

// FetcherConfig controls detail-page downloads.
type FetcherConfig struct {
	Timeout    time.Duration
	RateLimit  time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

func NewHTTPFetcher(cfg FetcherConfig, logger *utils.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", cfg.UserAgent)
	client.SetHeader("accept-language", "en-US,en;q=0.9")
	client.SetTimeout(cfg.Timeout)

	return &HTTPFetcher{
		http:  client,
		pacer: utils.NewPacer(cfg.RateLimit),
		retry: &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryDelay, Logger: logger},
	}
}

// Get returns the body of pageURL. Non-2xx responses are errors.
func (f *HTTPFetcher) Get(ctx context.Context, pageURL string) (string, error) {
	var body string
	err := f.retry.Do(ctx, "fetch "+pageURL, func(ctx context.Context) error {
		if err := f.pacer.Wait(ctx); err != nil {
			return err
		}
		res, err := f.http.R().SetContext(ctx).Get(pageURL)
		if err != nil {
			return eris.Wrap(err, "scraper: get")
		}
		if res.IsError() {
			return eris.Errorf("scraper: get %s: status %d", pageURL, res.StatusCode())
		}
		body = res.String()
		return nil
	})
	return body, err
}
