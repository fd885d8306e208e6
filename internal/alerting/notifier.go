package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingCredential is returned when the bot token or chat id is not configured.
var ErrMissingCredential = errors.New("missing required environment variable")

// Notifier delivers a rendered alert message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// TransportError reports a failed request to the Bot API or an unsuccessful reply.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("telegram sendMessage: unexpected status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("telegram sendMessage: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TelegramNotifier posts messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: strings.TrimSpace(botToken),
		chatID:   strings.TrimSpace(chatID),
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Send calls sendMessage with a plain text body.
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	if n.botToken == "" {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN", ErrMissingCredential)
	}
	if n.chatID == "" {
		return fmt.Errorf("%w: TELEGRAM_CHAT_ID", ErrMissingCredential)
	}

	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    text,
	})
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
		return &TransportError{Err: redact(err, n.botToken)}
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	decodeErr := json.Unmarshal(payload, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := strings.TrimSpace(result.Description)
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return &TransportError{StatusCode: resp.StatusCode, Err: errors.New(reason)}
	}
	if decodeErr == nil && !result.OK {
		return &TransportError{Err: fmt.Errorf("ok=false: %s", result.Description)}
	}

	n.logger.Info().Str("chat_id", n.chatID).Int("chars", len(text)).Msg("alert delivered (Telegram)")
	return nil
}

// redact strips the bot token from transport errors, which embed the request URL.
func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

var _ Notifier = (*TelegramNotifier)(nil)
