// Package scraper implements the notice listers and the notice-body scraper
// for the two watched exchanges. Upbit pages are single-page apps that need
// a real browser to render; Bithumb pages are served statically most of the
// time, with the browser as a fallback.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer returns fully-rendered HTML for a URL.
type Renderer interface {
	HTML(ctx context.Context, url string) (string, error)
}

// Browser renders pages in a shared headless Chrome instance. One allocator
// lives for the process; every render gets its own tab.
type Browser struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	settle   time.Duration
	timeout  time.Duration
}

var _ Renderer = (*Browser)(nil)

// NewBrowser configures the headless allocator. Chrome itself starts lazily
// on the first render.
func NewBrowser() *Browser {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Browser{
		allocCtx: allocCtx,
		cancel:   cancel,
		settle:   2 * time.Second,
		timeout:  15 * time.Second,
	}
}

// HTML navigates to the URL in a fresh tab, waits for the page to settle,
// and returns the rendered document.
func (b *Browser) HTML(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	// The tab derives from the allocator, not the caller; propagate the
	// caller's cancellation by hand.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	return html, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancel()
}
