package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
	"ListingWatcher/internal/textutil"
)

// ErrContentTooShort marks a render that fell below the announcement floor:
// a placeholder page or a failed SPA render, not a real notice body.
var ErrContentTooShort = errors.New("notice content below minimum length")

const (
	// Real announcement bodies comfortably clear 200 normalized characters.
	minContentLength = 200

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	stripSelectors = []string{"script", "style", "nav", "header", "footer", "aside", ".menu", ".navigation", ".gnb", ".lnb"}

	upbitContentSelectors   = []string{".notice-view-content", ".notice-content", ".view-content", "article", ".article-content"}
	bithumbContentSelectors = []string{".board-content", ".notice-content", ".view-content", "article", ".article-content"}
	genericContentSelectors = []string{"main", "article", ".content", "#content", ".main-content", ".post-content"}
)

// BodyScraper fetches full notice text. Upbit needs the browser every time;
// other hosts go static first with the browser as fallback.
type BodyScraper struct {
	client   *http.Client
	renderer Renderer
	logger   *slog.Logger
}

var _ ports.NoticeScraper = (*BodyScraper)(nil)

// NewBodyScraper wires the HTTP client (defaulted when nil) and renderer.
func NewBodyScraper(client *http.Client, renderer Renderer, logger *slog.Logger) *BodyScraper {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &BodyScraper{client: client, renderer: renderer, logger: logger}
}

// ScrapeBody retrieves, extracts, and normalizes the notice body, enforcing
// the minimum-length floor.
func (s *BodyScraper) ScrapeBody(ctx context.Context, url string) (domain.ScrapedNotice, error) {
	var content string
	var err error

	if strings.Contains(url, "upbit.com") && s.renderer != nil {
		content, err = s.scrapeRendered(ctx, url)
	} else {
		content, err = s.scrapeStatic(ctx, url)
		if s.renderer != nil && (err != nil || len([]rune(content)) < minContentLength) {
			if s.logger != nil {
				s.logger.Debug("static scrape insufficient, rendering", "url", url, "error", err)
			}
			content, err = s.scrapeRendered(ctx, url)
		}
	}
	if err != nil {
		return domain.ScrapedNotice{}, fmt.Errorf("scrape %s: %w", url, err)
	}

	normalized := textutil.NormalizeWhitespace(content)
	length := len([]rune(normalized))
	if length < minContentLength {
		return domain.ScrapedNotice{}, fmt.Errorf("scrape %s: %w (%d chars)", url, ErrContentTooShort, length)
	}

	if s.logger != nil {
		s.logger.Debug("notice body scraped", "url", url, "length", length)
	}
	return domain.ScrapedNotice{URL: url, Text: normalized, Length: length}, nil
}

func (s *BodyScraper) scrapeStatic(ctx context.Context, url string) (string, error) {
	html, err := fetchStatic(ctx, s.client, url)
	if err != nil {
		return "", err
	}
	return extractContent(html, url)
}

func (s *BodyScraper) scrapeRendered(ctx context.Context, url string) (string, error) {
	html, err := s.renderer.HTML(ctx, url)
	if err != nil {
		return "", err
	}
	return extractContent(html, url)
}

// extractContent walks selector priority lists per host, then generic ones,
// and falls back to the body text.
func extractContent(html, url string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	for _, selector := range stripSelectors {
		doc.Find(selector).Remove()
	}

	var content string
	for _, selector := range hostSelectors(url) {
		if element := doc.Find(selector).First(); element.Length() > 0 {
			content = element.Text()
			break
		}
	}

	if len([]rune(content)) < minContentLength {
		for _, selector := range genericContentSelectors {
			if element := doc.Find(selector).First(); element.Length() > 0 {
				if text := element.Text(); len(text) > len(content) {
					content = text
				}
			}
		}
	}

	if len([]rune(content)) < minContentLength {
		content = doc.Find("body").Text()
	}

	return content, nil
}

func hostSelectors(url string) []string {
	switch {
	case strings.Contains(url, "upbit.com"):
		return upbitContentSelectors
	case strings.Contains(url, "bithumb.com"):
		return bithumbContentSelectors
	default:
		return nil
	}
}
