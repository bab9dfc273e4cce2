package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	appconfig "liqflow/config"
	"liqflow/logger"
)

// Sink delivers alert texts to a Telegram channel through the Bot API.
// Sends are serialized and paced: a minimum interval is enforced between
// successive sendMessage calls by sleeping the remainder, on top of
// whatever throttling Telegram applies server-side.
type Sink struct {
	baseURL     string
	botToken    string
	chatID      string
	minInterval time.Duration
	client      *http.Client
	log         *logger.Log

	mu       sync.Mutex
	lastSend time.Time
	sent     int64
}

// NewSink builds a sink from the Telegram configuration.
func NewSink(cfg appconfig.TelegramConfig) *Sink {
	return &Sink{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		botToken:    cfg.BotToken,
		chatID:      cfg.ChatID,
		minInterval: cfg.MinInterval,
		client:      &http.Client{Timeout: cfg.Timeout},
		log:         logger.GetLogger(),
	}
}

// Send posts one message. It blocks until the pacing interval since the
// previous send has elapsed or the context is cancelled. A non-ok API
// response is returned as an error; the caller decides whether to drop.
func (s *Sink) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wait := s.minInterval - time.Since(s.lastSend); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	form := url.Values{}
	form.Set("chat_id", s.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendMessage request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read sendMessage response: %w", err)
	}

	var result struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse sendMessage response: %w", err)
	}
	if !result.Ok {
		return fmt.Errorf("telegram rejected message: %s", result.Description)
	}

	s.lastSend = time.Now()
	s.sent++
	s.log.WithComponent("telegram").WithFields(logger.Fields{
		"messages_sent": s.sent,
	}).Debug("message delivered")
	return nil
}

// Sent reports how many messages were delivered successfully.
func (s *Sink) Sent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}
