// Package service implements business logic on top of ports.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"unicode/utf8"

	"github.com/arbiterhq/Switchboard/internal/port/stream"
)

// publishEvent marshals payload and publishes it on the given subject.
// A nil stream is a no-op. Failures are logged and never propagated: the
// stream observes the bus, the bus does not depend on it.
func publishEvent(ctx context.Context, es stream.Stream, subject string, payload any) {
	if es == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("event payload marshal failed", "subject", subject, "error", err)
		return
	}
	if err := es.Publish(ctx, subject, data); err != nil {
		slog.Warn("event publish failed", "subject", subject, "error", err)
	}
}

// truncate cuts s to at most maxLen bytes, backing up so the cut never
// splits a multi-byte rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
