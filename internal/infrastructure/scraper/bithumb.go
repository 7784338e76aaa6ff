package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
	"ListingWatcher/internal/textutil"
)

const (
	bithumbNoticeListURL = "https://feed.bithumb.com/notice?category=9&page=1"
	bithumbBaseURL       = "https://feed.bithumb.com"

	minBithumbTitleLen = 3
)

var bithumbPathIDExpr = regexp.MustCompile(`/notice/(\d+)`)

// BithumbSource lists Bithumb KRW-market-addition notices. The feed is
// usually served statically; the renderer covers the occasions it is not.
type BithumbSource struct {
	client   *http.Client
	renderer Renderer
	listURL  string
	baseURL  string
	logger   *slog.Logger
}

var _ ports.NoticeSource = (*BithumbSource)(nil)

// NewBithumbSource wires the HTTP client (defaulted when nil) and the
// renderer fallback.
func NewBithumbSource(client *http.Client, renderer Renderer, logger *slog.Logger) *BithumbSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &BithumbSource{
		client:   client,
		renderer: renderer,
		listURL:  bithumbNoticeListURL,
		baseURL:  bithumbBaseURL,
		logger:   logger,
	}
}

// Exchange identifies the source.
func (s *BithumbSource) Exchange() domain.Exchange {
	return domain.ExchangeBithumb
}

// ListNotices fetches the notice feed, static first, and extracts notices
// whose titles announce a KRW market addition, deduplicated by notice id.
func (s *BithumbSource) ListNotices(ctx context.Context) ([]domain.Notice, error) {
	html, err := fetchStatic(ctx, s.client, s.listURL)
	if err != nil && s.renderer != nil {
		if s.logger != nil {
			s.logger.Debug("static fetch failed, rendering", "error", err)
		}
		html, err = s.renderer.HTML(ctx, s.listURL)
	}
	if err != nil {
		return nil, fmt.Errorf("bithumb notice list: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse notice list: %w", err)
	}

	seen := map[string]struct{}{}
	var notices []domain.Notice

	doc.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())

		match := bithumbPathIDExpr.FindStringSubmatch(href)
		if match == nil {
			match = queryIDExpr.FindStringSubmatch(href)
		}
		if match == nil || len([]rune(title)) <= minBithumbTitleLen {
			return
		}
		if !strings.Contains(textutil.StripWhitespace(title), "원화마켓추가") {
			return
		}
		if _, ok := seen[match[1]]; ok {
			return
		}
		seen[match[1]] = struct{}{}

		notices = append(notices, domain.Notice{
			NoticeID: match[1],
			Title:    title,
			URL:      absolutize(s.baseURL, href),
		})
	})

	if s.logger != nil {
		s.logger.Debug("bithumb listing notices fetched", "count", len(notices))
	}
	return notices, nil
}

func fetchStatic(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s for %s", resp.Status, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}
