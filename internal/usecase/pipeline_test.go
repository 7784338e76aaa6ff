package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/retry"
)

// noticeBody is a scraped body long enough to look real and carrying a
// parenthesized ticker.
const noticeBody = "테더골드(XAUT) KRW, BTC, USDT 마켓 신규 거래지원 안내입니다. " +
	"거래지원 일시와 입출금 일정은 공지 본문을 참고해 주시기 바랍니다."

func quickRetry(name string) retry.Config {
	return retry.Config{Name: name, MaxAttempts: 3}
}

type pipelineFixture struct {
	ledger    *fakeLedger
	scraper   *fakeScraper
	generator *fakeGenerator
	publisher *fakePublisher
	pipeline  *Pipeline
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		ledger:  newFakeLedger(),
		scraper: &fakeScraper{notice: domain.ScrapedNotice{Text: noticeBody, Length: len([]rune(noticeBody))}},
		generator: &fakeGenerator{article: domain.GeneratedArticle{
			Ticker:       "XAUT",
			Title:        "업비트, 테더골드 신규 거래지원",
			Body:         "업비트가 테더골드(XAUT)의 거래지원을 공지했다.",
			PromoMessage: "업비트, 테더골드(XAUT) 신규 거래지원 공지. 상장 일정과 마켓 정보 등 자세한 소식은 블록미디어에서 확인하세요.",
		}},
		publisher: &fakePublisher{},
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Scraper:       f.scraper,
		Generator:     f.generator,
		Publisher:     f.publisher,
		Ledger:        f.ledger,
		ScrapeRetry:   quickRetry("scrape"),
		GenerateRetry: quickRetry("generate"),
		PublishRetry:  quickRetry("publish"),
	})
	return f
}

func upbitEvent() domain.DetectionEvent {
	return domain.DetectionEvent{
		Text: "업비트(Upbit) 공지 신규 거래 지원 안내: 테더골드\nhttps://upbit.com/service_center/notice?id=1",
		URL:  "https://upbit.com/service_center/notice?id=1",
	}
}

func TestProcessSuccess(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	ctx := context.Background()
	f.ledger.SetTargetEnabled(ctx, 10, true)
	f.ledger.SetTargetEnabled(ctx, 20, true)

	outcome := f.pipeline.Process(ctx, upbitEvent())
	if !outcome.Success {
		t.Fatalf("expected success, got reason %q", outcome.Reason)
	}
	if outcome.Exchange != domain.ExchangeUpbit || outcome.Ticker != "XAUT" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	sort.Slice(f.publisher.sent, func(i, j int) bool { return f.publisher.sent[i] < f.publisher.sent[j] })
	if len(f.publisher.sent) != 2 || f.publisher.sent[0] != 10 || f.publisher.sent[1] != 20 {
		t.Fatalf("unexpected deliveries: %v", f.publisher.sent)
	}
	if f.ledger.recordProcessedCalls != 1 {
		t.Fatalf("recordProcessed calls = %d, want 1", f.ledger.recordProcessedCalls)
	}

	processed, _ := f.ledger.IsListingProcessed(ctx, domain.ExchangeUpbit, "XAUT")
	if !processed {
		t.Fatal("listing not recorded as processed")
	}
}

func TestProcessShortPromoGetsFallback(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.generator.article.PromoMessage = ""

	capturer := &capturingPublisher{}
	f.pipeline = NewPipeline(PipelineDeps{
		Scraper:       f.scraper,
		Generator:     f.generator,
		Publisher:     capturer,
		Ledger:        f.ledger,
		ScrapeRetry:   quickRetry("scrape"),
		GenerateRetry: quickRetry("generate"),
		PublishRetry:  quickRetry("publish"),
	})

	ctx := context.Background()
	f.ledger.SetTargetEnabled(ctx, 10, true)

	outcome := f.pipeline.Process(ctx, upbitEvent())
	if !outcome.Success {
		t.Fatalf("expected success, got reason %q", outcome.Reason)
	}

	captured := capturer.last
	if captured.PromoMessage == "" {
		t.Fatal("expected fallback promo message")
	}
	if !strings.Contains(captured.PromoMessage, "(XAUT)") {
		t.Fatalf("fallback promo missing ticker: %q", captured.PromoMessage)
	}
	if !strings.Contains(captured.PromoMessage, f.generator.article.Title) {
		t.Fatalf("fallback promo missing title: %q", captured.PromoMessage)
	}
}

type capturingPublisher struct {
	last domain.GeneratedArticle
}

func (p *capturingPublisher) Publish(_ context.Context, _ int64, article domain.GeneratedArticle) error {
	p.last = article
	return nil
}

func TestProcessRejectsNonListing(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	event := domain.DetectionEvent{Text: "오늘의 시장 브리핑입니다", URL: "https://example.com/x"}

	outcome := f.pipeline.Process(context.Background(), event)
	if outcome.Success || outcome.Reason != domain.ReasonNotListing {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if f.scraper.calls != 0 {
		t.Fatal("scraper should not run for a rejected event")
	}
}

func TestProcessMissingURL(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	event := upbitEvent()
	event.URL = ""

	outcome := f.pipeline.Process(context.Background(), event)
	if outcome.Reason != domain.ReasonScrapeFailed {
		t.Fatalf("reason = %q, want %q", outcome.Reason, domain.ReasonScrapeFailed)
	}
	if f.scraper.calls != 0 {
		t.Fatal("scraper should not run without a URL")
	}
}

func TestProcessScrapeFailureRetriesThenSkips(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.scraper.err = errors.New("timeout")

	outcome := f.pipeline.Process(context.Background(), upbitEvent())
	if outcome.Reason != domain.ReasonScrapeFailed {
		t.Fatalf("reason = %q, want %q", outcome.Reason, domain.ReasonScrapeFailed)
	}
	if f.scraper.calls != 3 {
		t.Fatalf("scraper calls = %d, want 3", f.scraper.calls)
	}
	if f.generator.calls != 0 {
		t.Fatal("generator should not run after a scrape failure")
	}
}

func TestProcessNoTickerInBody(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.scraper.notice.Text = "거래지원 안내 본문에 심볼 표기가 없습니다."

	outcome := f.pipeline.Process(context.Background(), upbitEvent())
	if outcome.Reason != domain.ReasonScrapeFailed {
		t.Fatalf("reason = %q, want %q", outcome.Reason, domain.ReasonScrapeFailed)
	}
	if f.generator.calls != 0 {
		t.Fatal("generator should not run without a ticker")
	}
}

func TestProcessDuplicateTickerShortCircuits(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	ctx := context.Background()
	f.ledger.SetTargetEnabled(ctx, 10, true)
	f.ledger.RecordProcessed(ctx, domain.ProcessedListing{Exchange: domain.ExchangeUpbit, Ticker: "XAUT"})
	f.ledger.recordProcessedCalls = 0

	outcome := f.pipeline.Process(ctx, upbitEvent())
	if outcome.Success || outcome.Reason != domain.ReasonDuplicateTicker {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if f.generator.calls != 0 {
		t.Fatal("duplicate gate must run before generation")
	}
	if len(f.publisher.sent) != 0 {
		t.Fatal("nothing should be published for a duplicate")
	}
	if f.ledger.recordProcessedCalls != 0 {
		t.Fatal("duplicate must not rewrite the ledger")
	}
}

func TestProcessGenerationFailure(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.generator.err = errors.New("model overloaded")

	outcome := f.pipeline.Process(context.Background(), upbitEvent())
	if outcome.Reason != domain.ReasonGenerationFailed {
		t.Fatalf("reason = %q, want %q", outcome.Reason, domain.ReasonGenerationFailed)
	}
	if f.generator.calls != 3 {
		t.Fatalf("generator calls = %d, want 3", f.generator.calls)
	}
	if f.ledger.recordProcessedCalls != 0 {
		t.Fatal("failed generation must not be recorded as processed")
	}
}

func TestProcessTargetEnumerationFailure(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.ledger.targetsErr = errors.New("db locked")

	outcome := f.pipeline.Process(context.Background(), upbitEvent())
	if outcome.Reason != domain.ReasonPublishFailed {
		t.Fatalf("reason = %q, want %q", outcome.Reason, domain.ReasonPublishFailed)
	}
}

func TestProcessPartialPublishFailureStillSucceeds(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	ctx := context.Background()
	f.ledger.SetTargetEnabled(ctx, 10, true)
	f.ledger.SetTargetEnabled(ctx, 20, true)
	f.publisher.failFor = map[int64]error{20: errors.New("chat not found")}

	outcome := f.pipeline.Process(ctx, upbitEvent())
	if !outcome.Success {
		t.Fatalf("expected success despite one failed target, got %+v", outcome)
	}
	if len(f.publisher.sent) != 1 || f.publisher.sent[0] != 10 {
		t.Fatalf("unexpected deliveries: %v", f.publisher.sent)
	}
	if f.ledger.recordProcessedCalls != 1 {
		t.Fatal("listing should still be recorded after partial delivery")
	}
}
