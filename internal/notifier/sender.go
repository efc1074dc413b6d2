package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"receptionist/internal/domain"
	"receptionist/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("notification channel not configured")

// Sender delivers one text to one recipient over a single channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, recipient, text string) error
}

// TelegramSender posts to a chat id through the bot API.
type TelegramSender struct {
	bot domain.TelegramSender
}

func NewTelegramSender(bot domain.TelegramSender) *TelegramSender {
	return &TelegramSender{bot: bot}
}

func (s *TelegramSender) Channel() string { return models.ChannelTelegram }

func (s *TelegramSender) Send(_ context.Context, recipient, text string) error {
	if s.bot == nil {
		return ErrNotConfigured
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", recipient, err)
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// WebhookSender hands SMS delivery to an HTTP gateway as {"to","body"} JSON.
type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

func NewWebhookSender(url, token string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSender) Channel() string { return models.ChannelSMS }

func (s *WebhookSender) Send(ctx context.Context, recipient, text string) error {
	if s.url == "" {
		return ErrNotConfigured
	}
	raw, err := json.Marshal(map[string]string{
		"to":   recipient,
		"body": text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes notifications to the log; used when a business has no channel configured.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Channel() string { return models.ChannelLog }

func (s *LogSender) Send(_ context.Context, recipient, text string) error {
	s.logger.Info().Str("recipient", recipient).Str("text", text).Msg("notification")
	return nil
}
