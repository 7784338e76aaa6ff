package usecase

import (
	"context"
	"strings"
	"sync"

	"ListingWatcher/internal/domain"
)

// fakeLedger is an in-memory ports.Ledger with per-operation error hooks.
type fakeLedger struct {
	mu        sync.Mutex
	processed map[string]bool
	polled    map[string]bool
	targets   map[int64]bool

	anyEnabledErr error
	targetsErr    error

	recordPolledCalls    int
	recordProcessedCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		processed: map[string]bool{},
		polled:    map[string]bool{},
		targets:   map[int64]bool{},
	}
}

func listingKey(exchange domain.Exchange, ticker string) string {
	return string(exchange) + "/" + ticker
}

func (l *fakeLedger) IsListingProcessed(_ context.Context, exchange domain.Exchange, ticker string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed[listingKey(exchange, ticker)], nil
}

func (l *fakeLedger) RecordProcessed(_ context.Context, listing domain.ProcessedListing) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordProcessedCalls++
	l.processed[listingKey(listing.Exchange, listing.Ticker)] = true
	return nil
}

func (l *fakeLedger) IsNoticePolled(_ context.Context, exchange domain.Exchange, noticeID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.polled[listingKey(exchange, noticeID)], nil
}

func (l *fakeLedger) RecordPolled(_ context.Context, exchange domain.Exchange, noticeID, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordPolledCalls++
	l.polled[listingKey(exchange, noticeID)] = true
	return nil
}

func (l *fakeLedger) HasAnyPolled(_ context.Context, exchange domain.Exchange) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.polled {
		if strings.HasPrefix(key, string(exchange)+"/") {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) SetTargetEnabled(_ context.Context, chatID int64, enabled bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.targets[chatID] = enabled
	return nil
}

func (l *fakeLedger) TargetEnabled(_ context.Context, chatID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.targets[chatID], nil
}

func (l *fakeLedger) EnabledTargets(_ context.Context) ([]domain.ChatTarget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.targetsErr != nil {
		return nil, l.targetsErr
	}
	var targets []domain.ChatTarget
	for chatID, enabled := range l.targets {
		if enabled {
			targets = append(targets, domain.ChatTarget{ChatID: chatID, Enabled: true})
		}
	}
	return targets, nil
}

func (l *fakeLedger) AnyTargetEnabled(_ context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.anyEnabledErr != nil {
		return false, l.anyEnabledErr
	}
	for _, enabled := range l.targets {
		if enabled {
			return true, nil
		}
	}
	return false, nil
}

type fakeScraper struct {
	notice domain.ScrapedNotice
	err    error
	calls  int
}

func (s *fakeScraper) ScrapeBody(_ context.Context, url string) (domain.ScrapedNotice, error) {
	s.calls++
	if s.err != nil {
		return domain.ScrapedNotice{}, s.err
	}
	notice := s.notice
	notice.URL = url
	return notice, nil
}

type fakeGenerator struct {
	article domain.GeneratedArticle
	err     error
	calls   int
}

func (g *fakeGenerator) Generate(_ context.Context, exchange domain.Exchange, _ string) (domain.GeneratedArticle, error) {
	g.calls++
	if g.err != nil {
		return domain.GeneratedArticle{}, g.err
	}
	article := g.article
	article.Exchange = exchange
	return article, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	sent    []int64
	failFor map[int64]error
}

func (p *fakePublisher) Publish(_ context.Context, chatID int64, _ domain.GeneratedArticle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failFor[chatID]; err != nil {
		return err
	}
	p.sent = append(p.sent, chatID)
	return nil
}

type fakeSource struct {
	exchange domain.Exchange
	notices  []domain.Notice
	err      error
	calls    int
}

func (s *fakeSource) Exchange() domain.Exchange { return s.exchange }

func (s *fakeSource) ListNotices(context.Context) ([]domain.Notice, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.notices, nil
}

type fakeProcessor struct {
	outcome domain.PipelineOutcome
	events  []domain.DetectionEvent
}

func (p *fakeProcessor) Process(_ context.Context, event domain.DetectionEvent) domain.PipelineOutcome {
	p.events = append(p.events, event)
	return p.outcome
}

type fakeAdmin struct {
	allowed bool
	err     error
}

func (a *fakeAdmin) IsAdmin(context.Context, int64, int64) (bool, error) {
	return a.allowed, a.err
}
