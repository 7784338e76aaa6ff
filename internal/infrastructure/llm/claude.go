// Package llm generates listing articles through the Anthropic messages API.
package llm

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ListingWatcher/internal/config"
	"ListingWatcher/internal/domain"
	"ListingWatcher/internal/ports"
)

//go:embed prompts/*.txt
var promptFS embed.FS

const systemPrompt = `당신은 블록미디어 기사 작성 전문가입니다.

중요 규칙:
1. 제공된 프롬프트 양식을 절대 벗어나지 마세요
2. 공지사항 전문에 명시된 내용만 사용하세요
3. 추측, 각색, 추가 정보 삽입을 하지 마세요
4. 반드시 JSON 형식으로만 응답하세요 (추가 텍스트 없음)
5. 두 개의 메시지를 모두 생성하세요: article_message, press_release_message
6. 반드시 맨 윗줄에 제목(Title)을 포함하세요

출력 형식:
{
  "exchange": "UPBIT" 또는 "BITHUMB",
  "ticker": "코인 티커",
  "title": "기사 제목",
  "article_message": "기사 본문 전체",
  "press_release_message": "텔레그램 배포 문구"
}`

const (
	maxTokens     = 4096
	temperature   = 0.7
	maxTickerLen  = 20
	minArticleLen = 100
)

var promptFiles = map[domain.Exchange]string{
	domain.ExchangeUpbit:   "upbit_listing.txt",
	domain.ExchangeBithumb: "bithumb_listing.txt",
}

// ClaudeGenerator implements ports.ArticleGenerator via anthropic-sdk-go.
type ClaudeGenerator struct {
	client    sdk.Client
	model     string
	promptDir string
	logger    *slog.Logger
}

var _ ports.ArticleGenerator = (*ClaudeGenerator)(nil)

// NewClaudeGenerator builds a generator from configuration.
func NewClaudeGenerator(cfg config.AnthropicConfig, logger *slog.Logger) *ClaudeGenerator {
	return &ClaudeGenerator{
		client:    sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		promptDir: cfg.PromptDir,
		logger:    logger,
	}
}

// Generate sends the notice text with the per-exchange prompt and parses the
// structured response.
func (g *ClaudeGenerator) Generate(ctx context.Context, exchange domain.Exchange, noticeText string) (domain.GeneratedArticle, error) {
	prompt, err := g.prompt(exchange)
	if err != nil {
		return domain.GeneratedArticle{}, err
	}

	userMessage := fmt.Sprintf("%s\n\n---\n\n복사한 공지사항 전문:\n\n%s", prompt, noticeText)

	start := time.Now()
	message, err := g.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(g.model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(temperature),
		System:      []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(userMessage))},
	})
	if err != nil {
		return domain.GeneratedArticle{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return domain.GeneratedArticle{}, errors.New("no text content in model response")
	}

	article, err := parseResponse(text)
	if err != nil {
		return domain.GeneratedArticle{}, err
	}
	article.Exchange = exchange

	if g.logger != nil {
		g.logger.Info("article generated",
			"exchange", exchange, "ticker", article.Ticker,
			"latency", time.Since(start),
			"inputTokens", message.Usage.InputTokens,
			"outputTokens", message.Usage.OutputTokens)
	}
	return article, nil
}

// prompt returns the exchange template, preferring an override file in the
// configured prompt directory over the embedded default.
func (g *ClaudeGenerator) prompt(exchange domain.Exchange) (string, error) {
	name, ok := promptFiles[exchange]
	if !ok {
		return "", fmt.Errorf("no prompt template for exchange %s", exchange)
	}

	if g.promptDir != "" {
		if raw, err := os.ReadFile(filepath.Join(g.promptDir, name)); err == nil {
			return string(raw), nil
		}
	}

	raw, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("read embedded prompt %s: %w", name, err)
	}
	return string(raw), nil
}

type claudeResponse struct {
	Exchange            string `json:"exchange"`
	Ticker              string `json:"ticker"`
	Title               string `json:"title"`
	ArticleMessage      string `json:"article_message"`
	PressReleaseMessage string `json:"press_release_message"`
}

// parseResponse extracts the JSON object from the response text (the model
// occasionally wraps it in prose) and applies schema floors.
func parseResponse(text string) (domain.GeneratedArticle, error) {
	jsonText := text
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			jsonText = text[start : end+1]
		}
	}

	var raw claudeResponse
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return domain.GeneratedArticle{}, fmt.Errorf("parse model response: %w", err)
	}

	ticker := strings.TrimSpace(raw.Ticker)
	switch {
	case ticker == "" || len([]rune(ticker)) > maxTickerLen:
		return domain.GeneratedArticle{}, fmt.Errorf("invalid ticker %q in model response", raw.Ticker)
	case strings.TrimSpace(raw.Title) == "":
		return domain.GeneratedArticle{}, errors.New("empty title in model response")
	case len([]rune(raw.ArticleMessage)) < minArticleLen:
		return domain.GeneratedArticle{}, fmt.Errorf("article body too short (%d chars)", len([]rune(raw.ArticleMessage)))
	}

	return domain.GeneratedArticle{
		Ticker:       strings.ToUpper(ticker),
		Title:        strings.TrimSpace(raw.Title),
		Body:         raw.ArticleMessage,
		PromoMessage: raw.PressReleaseMessage,
	}, nil
}
