package app

import (
	"context"
	"fmt"
	"log/slog"

	"ListingWatcher/internal/config"
	"ListingWatcher/internal/infrastructure/llm"
	"ListingWatcher/internal/infrastructure/scraper"
	"ListingWatcher/internal/infrastructure/storage"
	"ListingWatcher/internal/infrastructure/telegram"
	"ListingWatcher/internal/logging"
	"ListingWatcher/internal/usecase"
)

// Application wires configuration into the ledger, the collaborator
// adapters, the pipeline, and the two poll loops.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	ledger   *storage.SQLiteLedger
	browser  *scraper.Browser
	watchers *usecase.Watchers
	commands *usecase.Commands
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	ledger, err := storage.NewSQLiteLedger(cfg.Database.Path, baseLogger.With("component", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	browser := scraper.NewBrowser()
	bodyScraper := scraper.NewBodyScraper(nil, browser, baseLogger.With("component", "scraper"))
	upbit := scraper.NewUpbitSource(browser, baseLogger.With("component", "source.upbit"))
	bithumb := scraper.NewBithumbSource(nil, browser, baseLogger.With("component", "source.bithumb"))

	generator := llm.NewClaudeGenerator(cfg.Anthropic, baseLogger.With("component", "llm"))
	publisher := telegram.NewPublisher(cfg.Telegram, baseLogger.With("component", "telegram"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Scraper:   bodyScraper,
		Generator: generator,
		Publisher: publisher,
		Ledger:    ledger,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	interval := cfg.Watcher.Interval()
	watchers := usecase.NewWatchers(
		usecase.NewWatcher(upbit, pipeline, ledger, interval, baseLogger.With("component", "watcher.upbit")),
		usecase.NewWatcher(bithumb, pipeline, ledger, interval, baseLogger.With("component", "watcher.bithumb")),
	)

	commands := usecase.NewCommands(ledger, pipeline, nil, baseLogger.With("component", "commands"))

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		ledger:   ledger,
		browser:  browser,
		watchers: watchers,
		commands: commands,
	}, nil
}

// Commands exposes the enable/disable/status/forwarded surface to the bot
// command layer.
func (a *Application) Commands() *usecase.Commands {
	return a.commands
}

// Run starts both poll loops and blocks until the context is cancelled and
// the in-flight cycles have finished, then releases resources.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("listing watcher started", "interval", a.cfg.Watcher.Interval())

	a.watchers.Run(ctx)

	a.logger.Info("listing watcher stopped")
	return a.Close()
}

// Close releases the browser and the ledger.
func (a *Application) Close() error {
	a.browser.Close()
	if err := a.ledger.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}
