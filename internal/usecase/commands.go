package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
	"ListingWatcher/internal/textutil"
)

// Commands is the surface consumed by the bot command layer: target
// enablement plus live-forwarded message handling.
type Commands struct {
	ledger   ports.Ledger
	pipeline Processor
	admin    ports.AdminChecker
	logger   *slog.Logger
}

// NewCommands wires the command surface.
func NewCommands(ledger ports.Ledger, pipeline Processor, admin ports.AdminChecker, logger *slog.Logger) *Commands {
	return &Commands{ledger: ledger, pipeline: pipeline, admin: admin, logger: logger}
}

// Enable turns monitoring on for a chat, creating the target on first use.
func (c *Commands) Enable(ctx context.Context, actorID, chatID int64) error {
	return c.setEnabled(ctx, actorID, chatID, true)
}

// Disable turns monitoring off for a chat.
func (c *Commands) Disable(ctx context.Context, actorID, chatID int64) error {
	return c.setEnabled(ctx, actorID, chatID, false)
}

func (c *Commands) setEnabled(ctx context.Context, actorID, chatID int64, enabled bool) error {
	if c.admin != nil {
		ok, err := c.admin.IsAdmin(ctx, actorID, chatID)
		if err != nil {
			return fmt.Errorf("admin check: %w", err)
		}
		if !ok {
			return fmt.Errorf("actor %d is not an admin of chat %d", actorID, chatID)
		}
	}

	if err := c.ledger.SetTargetEnabled(ctx, chatID, enabled); err != nil {
		return fmt.Errorf("set target enabled: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("chat target updated", "chatId", chatID, "enabled", enabled)
	}
	return nil
}

// Status reports the enablement flag for a chat; unknown chats read as
// disabled.
func (c *Commands) Status(ctx context.Context, chatID int64) (bool, error) {
	enabled, err := c.ledger.TargetEnabled(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("target status: %w", err)
	}
	return enabled, nil
}

// HandleForwarded runs a live human-forwarded notice through the pipeline.
// It bypasses the watcher and the polled ledger entirely; only the
// (exchange, ticker) dedup gate applies. Failures are silent: the outcome is
// returned for the command layer to surface or ignore.
func (c *Commands) HandleForwarded(ctx context.Context, text string) domain.PipelineOutcome {
	event := domain.DetectionEvent{
		Text: text,
		URL:  textutil.ExtractURL(text),
	}

	outcome := c.pipeline.Process(ctx, event)
	if c.logger != nil {
		c.logger.Info("forwarded message processed",
			"success", outcome.Success, "exchange", outcome.Exchange,
			"ticker", outcome.Ticker, "reason", outcome.Reason)
	}
	return outcome
}
