package domain

import "time"

// Exchange identifies one of the two watched announcement feeds.
type Exchange string

const (
	ExchangeUpbit   Exchange = "UPBIT"
	ExchangeBithumb Exchange = "BITHUMB"
)

// Notice is one announcement item as returned by a feed lister.
type Notice struct {
	NoticeID string
	Title    string
	URL      string
}

// ScrapedNotice holds the full notice body after normalization.
type ScrapedNotice struct {
	URL    string
	Text   string
	Length int
}

// DetectionEvent carries a candidate notice from the watcher (or a
// live-forwarded message) into the pipeline. Text is either the raw
// forwarded message or a synthesized description for polled notices.
type DetectionEvent struct {
	Exchange Exchange
	Text     string
	URL      string
}

// SkipReason enumerates terminal non-success pipeline outcomes.
type SkipReason string

const (
	ReasonNotListing       SkipReason = "not_listing"
	ReasonExcludedKeyword  SkipReason = "excluded_keyword"
	ReasonDuplicateTicker  SkipReason = "duplicate_ticker"
	ReasonScrapeFailed     SkipReason = "scrape_failed"
	ReasonGenerationFailed SkipReason = "generation_failed"
	ReasonPublishFailed    SkipReason = "publish_failed"
)

// PipelineOutcome is the ephemeral result of processing one event.
type PipelineOutcome struct {
	Success  bool
	Exchange Exchange
	Ticker   string
	Reason   SkipReason
}

// GeneratedArticle is the structured result of the content-generation step.
type GeneratedArticle struct {
	Exchange     Exchange
	Ticker       string
	Title        string
	Body         string
	PromoMessage string
}

// ChatTarget is a delivery destination with its enablement flag.
// Created implicitly on first enable; at most one record per chat.
type ChatTarget struct {
	ChatID    int64
	Enabled   bool
	UpdatedAt time.Time
}

// ProcessedListing records that an (exchange, ticker) pair already produced
// a published article. Once present, the pair is never regenerated.
type ProcessedListing struct {
	Exchange    Exchange
	Ticker      string
	FirstSeenAt time.Time
	NoticeURL   string
	NoticeHash  string
}

// PolledNotice records that an (exchange, noticeId) pair was already
// considered by the watcher, regardless of the pipeline outcome.
type PolledNotice struct {
	Exchange  Exchange
	NoticeID  string
	NoticeURL string
	PolledAt  time.Time
}
