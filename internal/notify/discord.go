package notify

import (
	"context"
	"fmt"
	"net/http"
)

// discordEmbedColor is the sidebar color of posted embeds (auction amber).
const discordEmbedColor = 0xD4A017

// DiscordSender pushes auction events to a Discord channel webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: senderTimeout},
	}
}

// Send posts the notification as a single embed so titles render as a card
// header rather than inline markdown. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       title,
			"description": message,
			"color":       discordEmbedColor,
		}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier used in delivery logs.
func (d *DiscordSender) Name() string {
	return "discord"
}
