package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/filter"
	"ListingWatcher/internal/ports"
	"ListingWatcher/internal/retry"
	"ListingWatcher/internal/textutil"
)

// Promo messages below this length are replaced with a deterministic
// fallback built from title and ticker.
const minPromoLength = 50

// PipelineDeps wires the collaborators into the orchestrator. The retry
// configs default to the package presets when left zero.
type PipelineDeps struct {
	Scraper   ports.NoticeScraper
	Generator ports.ArticleGenerator
	Publisher ports.Publisher
	Ledger    ports.Ledger
	Logger    *slog.Logger

	ScrapeRetry   retry.Config
	GenerateRetry retry.Config
	PublishRetry  retry.Config
}

// Pipeline is the linear detection-to-publication state machine. Each event
// runs detect → filter → scrape → extract ticker → dedup gate → generate →
// publish → record, with no back edges.
type Pipeline struct {
	scraper   ports.NoticeScraper
	generator ports.ArticleGenerator
	publisher ports.Publisher
	ledger    ports.Ledger
	logger    *slog.Logger

	scrapeRetry   retry.Config
	generateRetry retry.Config
	publishRetry  retry.Config
}

// NewPipeline constructs the orchestrator.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.ScrapeRetry.MaxAttempts == 0 {
		deps.ScrapeRetry = retry.Scrape
	}
	if deps.GenerateRetry.MaxAttempts == 0 {
		deps.GenerateRetry = retry.Generate
	}
	if deps.PublishRetry.MaxAttempts == 0 {
		deps.PublishRetry = retry.Publish
	}

	return &Pipeline{
		scraper:       deps.Scraper,
		generator:     deps.Generator,
		publisher:     deps.Publisher,
		ledger:        deps.Ledger,
		logger:        deps.Logger,
		scrapeRetry:   deps.ScrapeRetry,
		generateRetry: deps.GenerateRetry,
		publishRetry:  deps.PublishRetry,
	}
}

// Process runs one detection event through the pipeline. Rejections and
// per-notice collaborator failures are terminal outcomes, never panics or
// loop-level errors.
func (p *Pipeline) Process(ctx context.Context, event domain.DetectionEvent) domain.PipelineOutcome {
	classified := filter.Classify(event.Text)
	if !classified.Qualifies {
		p.debug("event rejected by filter", "reason", classified.Reason)
		return domain.PipelineOutcome{Exchange: classified.Exchange, Reason: classified.Reason}
	}
	exchange := classified.Exchange

	if event.URL == "" {
		p.warn("no notice URL in event", "exchange", exchange)
		return domain.PipelineOutcome{Exchange: exchange, Reason: domain.ReasonScrapeFailed}
	}

	scraped, err := retry.Do(ctx, p.scrapeRetry, p.logger, func(ctx context.Context) (domain.ScrapedNotice, error) {
		return p.scraper.ScrapeBody(ctx, event.URL)
	})
	if err != nil {
		p.warn("scrape failed", "exchange", exchange, "url", event.URL, "error", err)
		return domain.PipelineOutcome{Exchange: exchange, Reason: domain.ReasonScrapeFailed}
	}

	ticker := textutil.ExtractTicker(scraped.Text)
	if ticker == "" {
		p.warn("no ticker in notice body", "exchange", exchange, "url", event.URL)
		return domain.PipelineOutcome{Exchange: exchange, Reason: domain.ReasonScrapeFailed}
	}

	// Permanent dedup gate. Must run before generation: regeneration is the
	// expensive, non-idempotent step.
	processed, err := p.ledger.IsListingProcessed(ctx, exchange, ticker)
	if err != nil {
		p.warn("processed-listing check failed", "exchange", exchange, "ticker", ticker, "error", err)
		return domain.PipelineOutcome{Exchange: exchange, Ticker: ticker, Reason: domain.ReasonScrapeFailed}
	}
	if processed {
		p.debug("ticker already processed", "exchange", exchange, "ticker", ticker)
		return domain.PipelineOutcome{Exchange: exchange, Ticker: ticker, Reason: domain.ReasonDuplicateTicker}
	}

	article, err := retry.Do(ctx, p.generateRetry, p.logger, func(ctx context.Context) (domain.GeneratedArticle, error) {
		return p.generator.Generate(ctx, exchange, scraped.Text)
	})
	if err != nil {
		p.warn("article generation failed", "exchange", exchange, "ticker", ticker, "error", err)
		return domain.PipelineOutcome{Exchange: exchange, Ticker: ticker, Reason: domain.ReasonGenerationFailed}
	}

	if len([]rune(article.PromoMessage)) < minPromoLength {
		article.PromoMessage = promoFallback(article.Title, ticker)
		p.info("promo message missing or short, using fallback", "exchange", exchange, "ticker", ticker)
	}

	targets, err := p.ledger.EnabledTargets(ctx)
	if err != nil {
		p.warn("enabled-target enumeration failed", "exchange", exchange, "ticker", ticker, "error", err)
		return domain.PipelineOutcome{Exchange: exchange, Ticker: ticker, Reason: domain.ReasonPublishFailed}
	}

	// Each target is delivered independently; a failed target never rolls
	// back the others and never fails the pipeline, since generation has
	// already completed.
	delivered := 0
	for _, target := range targets {
		_, pubErr := retry.Do(ctx, p.publishRetry, p.logger, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.publisher.Publish(ctx, target.ChatID, article)
		})
		if pubErr != nil {
			p.warn("publish to target failed", "chatId", target.ChatID, "ticker", ticker, "error", pubErr)
			continue
		}
		delivered++
	}
	p.info("publish batch completed", "exchange", exchange, "ticker", ticker,
		"targets", len(targets), "delivered", delivered)

	record := domain.ProcessedListing{
		Exchange:   exchange,
		Ticker:     ticker,
		NoticeURL:  event.URL,
		NoticeHash: contentHash(scraped.Text),
	}
	if err := p.ledger.RecordProcessed(ctx, record); err != nil {
		// The notice is still recorded as polled by the watcher, so worst
		// case is one regeneration attempt for this ticker.
		p.warn("record processed failed", "exchange", exchange, "ticker", ticker, "error", err)
	}

	return domain.PipelineOutcome{Success: true, Exchange: exchange, Ticker: ticker}
}

func promoFallback(title, ticker string) string {
	return fmt.Sprintf("%s (%s)\n블록미디어에서 상장 관련 소식을 확인하세요.", title, ticker)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
