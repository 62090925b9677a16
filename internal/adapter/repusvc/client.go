// Package repusvc provides an HTTP client for the external reputation
// service. It implements the reputation.Awarder port; all scoring
// arithmetic lives on the remote side.
package repusvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arbiterhq/Switchboard/internal/port/reputation"
	"github.com/arbiterhq/Switchboard/internal/resilience"
)

// Client talks to the reputation service's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a reputation client. A zero timeout falls back to 10s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type awardRequest struct {
	AgentID string  `json:"agent_id"`
	Amount  float64 `json:"amount"`
	Reason  string  `json:"reason"`
	RefID   string  `json:"ref_id,omitempty"`
}

// Award credits an agent for completed work.
func (c *Client) Award(ctx context.Context, agentID string, amount float64, reason, refID string) error {
	body, err := json.Marshal(awardRequest{
		AgentID: agentID,
		Amount:  amount,
		Reason:  reason,
		RefID:   refID,
	})
	if err != nil {
		return fmt.Errorf("marshal award: %w", err)
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/api/v1/awards", body); err != nil {
		return fmt.Errorf("award reputation: %w", err)
	}
	return nil
}

// RankTop returns up to limit agents ordered by descending score.
func (c *Client) RankTop(ctx context.Context, limit int) ([]reputation.Score, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/v1/rankings?limit=%d", limit), nil)
	if err != nil {
		return nil, fmt.Errorf("rank top: %w", err)
	}

	var result struct {
		Scores []reputation.Score `json:"scores"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("unmarshal rankings: %w", err)
	}
	return result.Scores, nil
}

// Health checks if the reputation service is reachable.
func (c *Client) Health(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err == nil, err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("reputation API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
