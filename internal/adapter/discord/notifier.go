// Package discord implements a notifier.Notifier for Discord webhooks.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

const providerName = "discord"

const embedColor = 0x5865F2 // Discord blurple

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		url := config["webhook_url"]
		if url == "" {
			return nil, fmt.Errorf("discord: webhook_url is required")
		}
		return NewNotifier(url), nil
	})
}

// Notifier posts delivery notices to Discord via incoming webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Discord notifier with the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{}
}

// discordWebhook is the Discord webhook payload with embeds.
type discordWebhook struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Notify posts the delivery notice to the configured webhook.
func (n *Notifier) Notify(ctx context.Context, d notifier.Delivery) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	payload := discordWebhook{
		Embeds: []discordEmbed{{
			Title:       fmt.Sprintf("Message delivered: %s", d.Kind),
			Description: fmt.Sprintf("**%s** to **%s**\n%s", d.From, d.To, d.Summary),
			Color:       embedColor,
			Footer:      &discordFooter{Text: "message id: " + d.MessageID},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
