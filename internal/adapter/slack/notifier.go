// Package slack implements a notifier.Notifier for Slack webhooks. It
// mirrors delivery notices into a human-facing channel; agents never
// consume it.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

const providerName = "slack"

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		url := config["webhook_url"]
		if url == "" {
			return nil, fmt.Errorf("slack: webhook_url is required")
		}
		return NewNotifier(url), nil
	})
}

// Notifier posts delivery notices to Slack via incoming webhook.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Slack notifier with the given webhook URL.
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

// slackMessage is the Slack Block Kit message payload.
type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts the delivery notice to the configured webhook.
func (n *Notifier) Notify(ctx context.Context, d notifier.Delivery) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	msg := slackMessage{
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{
				Type: "plain_text",
				Text: fmt.Sprintf("Message delivered: %s", d.Kind),
			}},
			{Type: "section", Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*%s* → *%s*\n%s", d.From, d.To, d.Summary),
			}},
			{Type: "context", Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("_message id: %s_", d.MessageID),
			}},
		},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
