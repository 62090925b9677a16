package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

// Compile-time interface check.
var _ notifier.Notifier = (*Notifier)(nil)

func TestNotifierName(t *testing.T) {
	n := NewNotifier("")
	if n.Name() != "discord" {
		t.Fatalf("expected 'discord', got %q", n.Name())
	}
}

func TestNotifyNotConfigured(t *testing.T) {
	n := NewNotifier("")
	err := n.Notify(context.Background(), notifier.Delivery{MessageID: "m-1"})
	if err != notifier.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNotifyPostsEmbed(t *testing.T) {
	var got discordWebhook
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	err := n.Notify(context.Background(), notifier.Delivery{
		MessageID: "m-1",
		From:      "alice",
		To:        "bob",
		Kind:      "task_delegation",
		Summary:   "triage the queue",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(got.Embeds))
	}
	embed := got.Embeds[0]
	if !strings.Contains(embed.Title, "task_delegation") {
		t.Fatalf("title missing kind: %q", embed.Title)
	}
	if !strings.Contains(embed.Description, "alice") || !strings.Contains(embed.Description, "bob") {
		t.Fatalf("description missing parties: %q", embed.Description)
	}
	if embed.Footer == nil || !strings.Contains(embed.Footer.Text, "m-1") {
		t.Fatal("footer missing message id")
	}
}

func TestNotifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL)
	err := n.Notify(context.Background(), notifier.Delivery{MessageID: "m-1"})
	if err == nil {
		t.Fatal("expected error on 429 response")
	}
}
