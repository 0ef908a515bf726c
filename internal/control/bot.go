package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// longPollTimeout is the getUpdates long-poll window in seconds. The HTTP
// client timeout must exceed it.
const longPollTimeout = 30

// Bot is a Telegram long-poll command bot driving a PipelineController.
// Commands: /run, /enable, /disable, /status, /help. Only chats in the
// allowed set are served; an empty set allows everyone.
type Bot struct {
	token      string
	allowed    map[int64]bool
	controller PipelineController
	client     *http.Client
	logger     *slog.Logger
	offset     int64
}

// NewBot creates a Bot for the given token and controller.
func NewBot(token string, allowedChatIDs []int64, controller PipelineController, logger *slog.Logger) *Bot {
	allowed := make(map[int64]bool, len(allowedChatIDs))
	for _, id := range allowedChatIDs {
		allowed[id] = true
	}
	return &Bot{
		token:      token,
		allowed:    allowed,
		controller: controller,
		client:     &http.Client{Timeout: (longPollTimeout + 10) * time.Second},
		logger:     logger.With(slog.String("component", "control_bot")),
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Run polls for updates until ctx is cancelled. Transport errors back off
// briefly and the loop continues; only context cancellation ends it.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "control bot starting")

	for {
		if ctx.Err() != nil {
			b.logger.InfoContext(ctx, "control bot stopped")
			return ctx.Err()
		}

		updates, err := b.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.WarnContext(ctx, "poll failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			b.handleCommand(ctx, u.Message.Chat.ID, u.Message.Text)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	command := strings.ToLower(strings.TrimSpace(text))
	// Strip the @botname suffix Telegram appends in group chats.
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	if !strings.HasPrefix(command, "/") {
		return
	}

	if len(b.allowed) > 0 && !b.allowed[chatID] {
		b.logger.WarnContext(ctx, "unauthorized chat", slog.Int64("chat_id", chatID))
		b.reply(ctx, chatID, "This bot is restricted to authorized operators.")
		return
	}

	switch command {
	case "/run":
		b.reply(ctx, chatID, "Running pipeline...")
		result, err := b.controller.RunNow(ctx)
		if err != nil {
			b.reply(ctx, chatID, fmt.Sprintf("Run failed: %v", err))
			return
		}
		b.reply(ctx, chatID, fmt.Sprintf(
			"Run %s finished: %d signals (%d buy, %d sell)",
			shortID(result.RunID), len(result.Signals), result.BuySignals, result.SellSignals,
		))
	case "/enable":
		b.controller.EnableSchedule()
		b.reply(ctx, chatID, "Schedule enabled.")
	case "/disable":
		b.controller.DisableSchedule()
		b.reply(ctx, chatID, "Schedule disabled. Manual /run still works.")
	case "/status":
		b.reply(ctx, chatID, formatStatus(b.controller.Status()))
	case "/help", "/start":
		b.reply(ctx, chatID, strings.Join([]string{
			"Commands:",
			"/run - run the pipeline now",
			"/enable - enable scheduled runs",
			"/disable - disable scheduled runs",
			"/status - scheduler state and last run",
		}, "\n"))
	default:
		b.reply(ctx, chatID, "Unknown command. Try /help.")
	}
}

func formatStatus(status Status) string {
	var b strings.Builder
	if status.ScheduleEnabled {
		b.WriteString("schedule: enabled\n")
	} else {
		b.WriteString("schedule: disabled\n")
	}
	if status.Running {
		b.WriteString("pipeline: running\n")
	}
	if status.LastRunID != "" {
		fmt.Fprintf(&b, "last run: %s at %s, %d signals\n",
			shortID(status.LastRunID),
			status.LastRunAt.Format(time.RFC3339),
			status.LastSignals,
		)
	}
	if status.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", status.LastError)
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	url := fmt.Sprintf(
		"https://api.telegram.org/bot%s/getUpdates?timeout=%d&offset=%d",
		b.token, longPollTimeout, b.offset,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("control: create poll request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("control: poll updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("control: poll status %d: %s", resp.StatusCode, string(body))
	}

	var decoded updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("control: decode updates: %w", err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("control: telegram responded not ok")
	}
	return decoded.Result, nil
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.WarnContext(ctx, "reply failed", slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		b.logger.WarnContext(ctx, "reply rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
	}
}
