package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers notifications through the Bot API's sendMessage
// method. Messages are sent as HTML so titles can be bolded without running
// into MarkdownV2's escaping rules.
type TelegramSender struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
}

var _ Sender = (*TelegramSender)(nil)

// NewTelegramSender creates a sender for the given bot token and chat id.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// telegramResponse is the Bot API envelope. The API reports method failures
// with HTTP 200 and ok=false, so the body must be decoded even on success
// statuses.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Deliver posts the notification to the configured chat.
func (t *TelegramSender) Deliver(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title), html.EscapeString(n.Body))

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	defer resp.Body.Close()

	var decoded telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("notify: telegram response status %d: %w", resp.StatusCode, err)
	}
	if !decoded.OK {
		return fmt.Errorf("notify: telegram rejected message (status %d): %s", resp.StatusCode, decoded.Description)
	}
	return nil
}

// Channel returns the channel identifier.
func (t *TelegramSender) Channel() string {
	return "telegram"
}
