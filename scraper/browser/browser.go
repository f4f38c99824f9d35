// Package browser renders JavaScript-heavy listing search pages in headless
// Chrome and hands back the resulting DOM.
package browser

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"devleads/utils"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Config controls page rendering.
type Config struct {
	ChromeBin    string
	ScrollPasses int
	Wait         time.Duration
	PageTimeout  time.Duration
	UserAgent    string
}

// Renderer owns one Chrome process shared by every page it renders. It is
// not safe for concurrent use.
type Renderer struct {
	cfg         Config
	logger      *utils.Logger
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelCtx   context.CancelFunc
}

// New prepares a Renderer. Chrome is launched lazily on the first Render.
func New(cfg Config, logger *utils.Logger) *Renderer {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 3 * time.Second
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 90 * time.Second
	}
	return &Renderer{cfg: cfg, logger: logger}
}

func (r *Renderer) start() {
	if r.browserCtx != nil {
		return
	}
	chromeBin := r.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	r.logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1440, 900),
		chromedp.UserAgent(r.cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	r.allocCtx, r.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	// Suppress chromedp log noise
	r.browserCtx, r.cancelCtx = chromedp.NewContext(r.allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
}

// Render loads pageURL, scrolls to trigger lazy loading and returns the
// final document HTML.
func (r *Renderer) Render(ctx context.Context, pageURL string) (string, error) {
	r.start()

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.cfg.PageTimeout)
	defer cancelTimeout()

	// Abort the tab when the caller's context ends.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	actions := []chromedp.Action{
		chromedp.Navigate(pageURL),
		chromedp.Evaluate(`Object.defineProperty(navigator,'webdriver',{get:()=>undefined})`, nil),
		chromedp.Sleep(r.cfg.Wait),
	}
	for i := 0; i < r.cfg.ScrollPasses; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, Math.max(600, window.innerHeight))`, nil),
			chromedp.Sleep(700*time.Millisecond),
		)
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return "", eris.Wrapf(err, "browser: render %s", pageURL)
	}
	r.logger.Debug("[browser] Rendered %s (%d bytes)", pageURL, len(html))
	return html, nil
}

// Close shuts Chrome down.
func (r *Renderer) Close() error {
	if r.cancelCtx != nil {
		r.cancelCtx()
	}
	if r.cancelAlloc != nil {
		r.cancelAlloc()
	}
	r.browserCtx = nil
	return nil
}

// findChromeBinary returns the first Chrome/Chromium found, or "" to let
// chromedp use its own lookup.
func findChromeBinary() string {
	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
