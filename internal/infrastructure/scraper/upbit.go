package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
	"ListingWatcher/internal/textutil"
)

const (
	upbitNoticeListURL = "https://upbit.com/service_center/notice"
	upbitBaseURL       = "https://upbit.com"

	// Link texts shorter than this are pagination arrows and chrome.
	minUpbitTitleLen = 5
)

var queryIDExpr = regexp.MustCompile(`[?&]id=(\d+)`)

// UpbitSource lists Upbit listing notices from the rendered notice board.
type UpbitSource struct {
	renderer Renderer
	listURL  string
	logger   *slog.Logger
}

var _ ports.NoticeSource = (*UpbitSource)(nil)

// NewUpbitSource wires the renderer for the SPA notice board.
func NewUpbitSource(renderer Renderer, logger *slog.Logger) *UpbitSource {
	return &UpbitSource{
		renderer: renderer,
		listURL:  upbitNoticeListURL,
		logger:   logger,
	}
}

// Exchange identifies the source.
func (s *UpbitSource) Exchange() domain.Exchange {
	return domain.ExchangeUpbit
}

// ListNotices renders the notice board and extracts notices whose titles
// announce new trading support, deduplicated by notice id.
func (s *UpbitSource) ListNotices(ctx context.Context) ([]domain.Notice, error) {
	html, err := s.renderer.HTML(ctx, s.listURL)
	if err != nil {
		return nil, fmt.Errorf("upbit notice list: %w", err)
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

		match := queryIDExpr.FindStringSubmatch(href)
		if match == nil || len([]rune(title)) <= minUpbitTitleLen {
			return
		}
		if !strings.Contains(textutil.StripWhitespace(title), "신규거래지원") {
			return
		}
		if _, ok := seen[match[1]]; ok {
			return
		}
		seen[match[1]] = struct{}{}

		notices = append(notices, domain.Notice{
			NoticeID: match[1],
			Title:    title,
			URL:      absolutize(upbitBaseURL, href),
		})
	})

	if s.logger != nil {
		s.logger.Debug("upbit listing notices fetched", "count", len(notices))
	}
	return notices, nil
}

func absolutize(base, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		return base + "/" + href
	}
	return base + href
}
