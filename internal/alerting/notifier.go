package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries the context of one alarm activation.
type Notification struct {
	Bed      string
	Param    string
	Message  string
	Value    decimal.Decimal
	Unit     string
	SimTime  decimal.Decimal
	Status   string
	Channels []string
	// Resumed is set when a silenced alarm became audible again.
	Resumed bool
}

// Notifier delivers alarm notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("bed", note.Bed).
		Str("param", note.Param).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("alarm sent (Telegram)")
	return nil
}

// LogNotifier writes notifications to the log when no remote channel is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the rendered message at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().Str("bed", note.Bed).
		Str("param", note.Param).
		Str("value", note.Value.String()).
		Msg(note.Message)
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	builder := strings.Builder{}
	title := "[Patient Alarm]"
	if note.Resumed {
		title = "[Patient Alarm - silence expired]"
	}
	builder.WriteString(title + "\n")
	if note.Bed != "" {
		builder.WriteString(fmt.Sprintf("Bed: %s\n", note.Bed))
	}
	builder.WriteString(fmt.Sprintf("Alarm: %s\n", note.Message))
	builder.WriteString(fmt.Sprintf("Parameter: %s\n", note.Param))
	value := note.Value.StringFixed(1)
	if note.Unit != "" {
		value += " " + note.Unit
	}
	builder.WriteString(fmt.Sprintf("Value: %s\n", value))
	builder.WriteString(fmt.Sprintf("Time: %ss\n", note.SimTime.StringFixed(1)))
	if note.Status != "" {
		builder.WriteString(fmt.Sprintf("Status: %s\n", note.Status))
	}
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	return builder.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
