package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

// Page describes a client-rendered page to load and extract data from
type Page struct {
	URL string
	// WaitSelector is a CSS selector that appears once the page has rendered
	WaitSelector string
	// Script is evaluated after rendering; its JSON result is decoded into
	// the caller's value
	Script string
}

// Renderer loads pages that only produce their content in a browser
type Renderer interface {
	Render(ctx context.Context, page Page, out any) error
}

// ChromeRenderer renders pages in headless Chrome. The number of concurrent
// browser sessions is bounded and every session is closed on return.
type ChromeRenderer struct {
	sessions *semaphore.Weighted
	timeout  time.Duration
	opts     []chromedp.ExecAllocatorOption
	run      func(ctx context.Context, page Page) ([]byte, error)
}

// NewChromeRenderer creates a renderer from the adapter settings
func NewChromeRenderer(cfg Config) *ChromeRenderer {
	sessions := cfg.BrowserSessions
	if sessions <= 0 {
		sessions = DefaultBrowserSessions
	}
	timeout := cfg.BrowserTimeout
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = UserAgent
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.UserAgent(ua),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	r := &ChromeRenderer{
		sessions: semaphore.NewWeighted(sessions),
		timeout:  timeout,
		opts:     opts,
	}
	r.run = r.chrome
	return r
}

// Render loads the page, waits for it to render and decodes the script
// result into out
func (r *ChromeRenderer) Render(ctx context.Context, page Page, out any) error {
	if err := r.sessions.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: waiting for browser session: %v", ErrNetwork, err)
	}
	defer r.sessions.Release(1)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.run(ctx, page)
	if err != nil {
		return fmt.Errorf("%w: rendering %s: %v", ErrNetwork, page.URL, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding rendered %s: %v", ErrParse, page.URL, err)
	}
	return nil
}

func (r *ChromeRenderer) chrome(ctx context.Context, page Page) ([]byte, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var raw []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(page.URL),
		chromedp.WaitReady(page.WaitSelector, chromedp.ByQuery),
		chromedp.Evaluate(page.Script, &raw),
	)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
