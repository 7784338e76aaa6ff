package ports

import (
	"context"

	"ListingWatcher/internal/domain"
)

// NoticeSource lists currently-published listing notices for one exchange,
// already filtered to the listing category and deduplicated by notice id.
type NoticeSource interface {
	Exchange() domain.Exchange
	ListNotices(ctx context.Context) ([]domain.Notice, error)
}

// NoticeScraper fetches and normalizes the full notice body from its URL.
type NoticeScraper interface {
	ScrapeBody(ctx context.Context, url string) (domain.ScrapedNotice, error)
}

// ArticleGenerator produces the article and promo message for a notice.
type ArticleGenerator interface {
	Generate(ctx context.Context, exchange domain.Exchange, noticeText string) (domain.GeneratedArticle, error)
}

// Publisher delivers a generated article to a single chat target.
type Publisher interface {
	Publish(ctx context.Context, chatID int64, article domain.GeneratedArticle) error
}

// AdminChecker gates enable/disable commands. One-to-one chats always pass.
type AdminChecker interface {
	IsAdmin(ctx context.Context, actorID, chatID int64) (bool, error)
}

// Ledger owns the three dedup domains: target enablement, processed
// listings by (exchange, ticker), and polled notices by (exchange, noticeId).
// Record operations are atomic insert-if-absent: a lost race is a no-op.
type Ledger interface {
	IsListingProcessed(ctx context.Context, exchange domain.Exchange, ticker string) (bool, error)
	RecordProcessed(ctx context.Context, listing domain.ProcessedListing) error

	IsNoticePolled(ctx context.Context, exchange domain.Exchange, noticeID string) (bool, error)
	RecordPolled(ctx context.Context, exchange domain.Exchange, noticeID, url string) error
	HasAnyPolled(ctx context.Context, exchange domain.Exchange) (bool, error)

	SetTargetEnabled(ctx context.Context, chatID int64, enabled bool) error
	TargetEnabled(ctx context.Context, chatID int64) (bool, error)
	EnabledTargets(ctx context.Context) ([]domain.ChatTarget, error)
	AnyTargetEnabled(ctx context.Context) (bool, error)
}
