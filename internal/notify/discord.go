package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// discordEmbedColor is the accent color for webhook embeds (teal).
const discordEmbedColor = 0x1abc9c

// DiscordSender delivers notifications to a Discord webhook as a single
// embed, with the notification title as the embed title.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

var _ Sender = (*DiscordSender)(nil)

// NewDiscordSender creates a sender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Deliver posts the notification to the webhook. Discord answers 204 No
// Content on success.
func (d *DiscordSender) Deliver(ctx context.Context, n Notification) error {
	payload := discordWebhookPayload{
		Embeds: []discordEmbed{{
			Title:       n.Title,
			Description: n.Body,
			Color:       discordEmbedColor,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: discord webhook status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// Channel returns the channel identifier.
func (d *DiscordSender) Channel() string {
	return "discord"
}
