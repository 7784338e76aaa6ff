// Package telegram delivers generated articles to chats via the bot API.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ListingWatcher/internal/config"
	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Publisher sends two messages per listing: the article itself, then the
// promo text with the per-exchange image when one is configured.
type Publisher struct {
	botToken string
	apiBase  string
	client   *http.Client
	images   map[domain.Exchange]string
	logger   *slog.Logger
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers bot credentials and the promo image paths.
func NewPublisher(cfg config.TelegramConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		botToken: cfg.BotToken,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 30 * time.Second},
		images: map[domain.Exchange]string{
			domain.ExchangeUpbit:   cfg.UpbitImagePath,
			domain.ExchangeBithumb: cfg.BithumbImagePath,
		},
		logger: logger,
	}
}

// Publish delivers the article to one chat. The article message goes first;
// a failure there aborts the promo message for the same chat.
func (p *Publisher) Publish(ctx context.Context, chatID int64, article domain.GeneratedArticle) error {
	if p.botToken == "" {
		return fmt.Errorf("telegram publisher misconfigured")
	}

	body := article.Body
	if article.Title != "" && !strings.HasPrefix(strings.TrimSpace(body), strings.TrimSpace(article.Title)) {
		body = strings.TrimSpace(article.Title + "\n\n" + body)
	}

	if err := p.sendMessage(ctx, chatID, body, true); err != nil {
		return fmt.Errorf("send article: %w", err)
	}

	imagePath := p.images[article.Exchange]
	if imagePath != "" {
		if _, err := os.Stat(imagePath); err == nil {
			if err := p.sendPhoto(ctx, chatID, imagePath, article.PromoMessage); err != nil {
				return fmt.Errorf("send promo photo: %w", err)
			}
			p.debug("promo photo sent", "chatId", chatID)
			return nil
		}
		p.debug("promo image missing, sending text only", "path", imagePath)
	}

	if err := p.sendMessage(ctx, chatID, article.PromoMessage, false); err != nil {
		return fmt.Errorf("send promo: %w", err)
	}
	return nil
}

func (p *Publisher) sendMessage(ctx context.Context, chatID int64, text string, article bool) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	if article {
		form.Set("parse_mode", "HTML")
		form.Set("link_preview_options", `{"is_disabled":true}`)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.apiBase, p.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.do(req)
}

func (p *Publisher) sendPhoto(ctx context.Context, chatID int64, imagePath, caption string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id: %w", err)
	}
	if err := writer.WriteField("caption", caption); err != nil {
		return fmt.Errorf("write caption: %w", err)
	}
	part, err := writer.CreateFormFile("photo", filepath.Base(imagePath))
	if err != nil {
		return fmt.Errorf("create photo part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendPhoto", p.apiBase, p.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return p.do(req)
}

func (p *Publisher) do(req *http.Request) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

func (p *Publisher) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
