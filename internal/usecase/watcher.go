package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
)

const defaultPollInterval = 45 * time.Second

// backoffLadder applies after a cycle-level fetch error: 5s → 10s → 30s → 60s.
var backoffLadder = []time.Duration{5 * time.Second, 10 * time.Second, 30 * time.Second, 60 * time.Second}

// Processor runs one detection event through the pipeline.
type Processor interface {
	Process(ctx context.Context, event domain.DetectionEvent) domain.PipelineOutcome
}

// Watcher is the loop state for one source: its own timer, its own backoff
// index, nothing shared with the other source's loop. Backoff state is
// in-memory only and resets on restart.
type Watcher struct {
	source   ports.NoticeSource
	pipeline Processor
	ledger   ports.Ledger
	interval time.Duration
	ladder   []time.Duration
	logger   *slog.Logger

	backoffIndex int
}

// NewWatcher builds a poll loop for one source. A non-positive interval
// falls back to the 45s default.
func NewWatcher(source ports.NoticeSource, pipeline Processor, ledger ports.Ledger, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		source:   source,
		pipeline: pipeline,
		ledger:   ledger,
		interval: interval,
		ladder:   backoffLadder,
		logger:   logger,
	}
}

// Run polls until the context is cancelled. The first cycle fires
// immediately; an in-flight cycle is allowed to finish on shutdown.
func (w *Watcher) Run(ctx context.Context) {
	for {
		w.cycle(ctx)

		delay := w.nextDelay()
		w.debug("next poll scheduled", "exchange", w.source.Exchange(), "delay", delay, "backoffIndex", w.backoffIndex)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.info("poll loop stopped", "exchange", w.source.Exchange())
			return
		case <-timer.C:
		}
	}
}

// cycle runs one poll and adjusts backoff state. Collaborator failures are
// absorbed here; they never escape into the loop.
func (w *Watcher) cycle(ctx context.Context) {
	if err := w.runCycle(ctx); err != nil {
		w.backoffIndex = min(w.backoffIndex+1, len(w.ladder))
		w.warn("poll cycle failed", "exchange", w.source.Exchange(), "backoffIndex", w.backoffIndex, "error", err)
		return
	}
	w.backoffIndex = 0
}

// nextDelay is the base interval in steady state, or the ladder entry for
// the current backoff index after an error.
func (w *Watcher) nextDelay() time.Duration {
	if w.backoffIndex > 0 {
		return w.ladder[w.backoffIndex-1]
	}
	return w.interval
}

func (w *Watcher) runCycle(ctx context.Context) error {
	exchange := w.source.Exchange()

	enabled, err := w.ledger.AnyTargetEnabled(ctx)
	if err != nil {
		return fmt.Errorf("enabled-target gate: %w", err)
	}
	if !enabled {
		w.debug("no enabled targets, poll skipped", "exchange", exchange)
		return nil
	}

	notices, err := w.source.ListNotices(ctx)
	if err != nil {
		return fmt.Errorf("list notices: %w", err)
	}

	// Cold start: seed the polled ledger without processing, so a first
	// deployment does not replay the feed's historical notices.
	if len(notices) > 0 {
		seeded, err := w.ledger.HasAnyPolled(ctx, exchange)
		if err != nil {
			return fmt.Errorf("cold-start check: %w", err)
		}
		if !seeded {
			w.info("first poll, seeding polled ledger without processing", "exchange", exchange, "notices", len(notices))
			for _, notice := range notices {
				if err := w.ledger.RecordPolled(ctx, exchange, notice.NoticeID, notice.URL); err != nil {
					w.warn("seed polled notice failed", "exchange", exchange, "noticeId", notice.NoticeID, "error", err)
				}
			}
			return nil
		}
	}

	for _, notice := range notices {
		w.processNotice(ctx, notice)
	}
	return nil
}

// processNotice handles a single candidate. The polled record is written
// after the pipeline finishes, success or skip alike: a crash before the
// write means retry on the next poll, a crash after means never again.
func (w *Watcher) processNotice(ctx context.Context, notice domain.Notice) {
	exchange := w.source.Exchange()

	polled, err := w.ledger.IsNoticePolled(ctx, exchange, notice.NoticeID)
	if err != nil {
		w.warn("polled check failed", "exchange", exchange, "noticeId", notice.NoticeID, "error", err)
		return
	}
	if polled {
		return
	}

	w.info("new notice detected", "exchange", exchange, "noticeId", notice.NoticeID, "title", notice.Title)

	event := domain.DetectionEvent{
		Exchange: exchange,
		Text:     syntheticDescription(exchange, notice.Title, notice.URL),
		URL:      notice.URL,
	}
	outcome := w.pipeline.Process(ctx, event)

	if err := w.ledger.RecordPolled(ctx, exchange, notice.NoticeID, notice.URL); err != nil {
		w.warn("record polled failed", "exchange", exchange, "noticeId", notice.NoticeID, "error", err)
	}

	if outcome.Success {
		w.info("polled notice processed", "exchange", exchange, "noticeId", notice.NoticeID, "ticker", outcome.Ticker)
	} else {
		w.info("polled notice skipped", "exchange", exchange, "noticeId", notice.NoticeID, "reason", outcome.Reason)
	}
}

// syntheticDescription builds a detection text that carries the source's
// positive filter tokens, so polled notices and forwarded messages take the
// same path through the pipeline.
func syntheticDescription(exchange domain.Exchange, title, url string) string {
	if exchange == domain.ExchangeBithumb {
		return fmt.Sprintf("빗썸(Bithumb) 원화 마켓 추가: %s\n%s", title, url)
	}
	return fmt.Sprintf("업비트(Upbit) 공지 신규 거래 지원 안내: %s\n%s", title, url)
}

func (w *Watcher) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}

func (w *Watcher) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}

func (w *Watcher) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}

// Watchers runs the independent per-source loops together and waits for all
// of them on shutdown.
type Watchers struct {
	loops []*Watcher
}

// NewWatchers groups the per-source loops.
func NewWatchers(loops ...*Watcher) *Watchers {
	return &Watchers{loops: loops}
}

// Run starts every loop and blocks until the context is cancelled and all
// loops have drained.
func (s *Watchers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, loop := range s.loops {
		wg.Add(1)
		go func(w *Watcher) {
			defer wg.Done()
			w.Run(ctx)
		}(loop)
	}
	wg.Wait()
}
