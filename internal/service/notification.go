package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

// NotificationService fans delivery notices out to all registered notifiers.
// Every send is bounded by a per-call timeout and a shared concurrency
// limit; errors are logged, never returned. Losing a notice is acceptable,
// the envelope itself is already durable in the mailbox.
type NotificationService struct {
	notifiers []notifier.Notifier
	sem       *semaphore.Weighted
	timeout   time.Duration
}

// NewNotificationService creates a NotificationService. maxConcurrent bounds
// how many notifier calls run at once across all deliveries; timeout caps
// each individual call.
func NewNotificationService(notifiers []notifier.Notifier, maxConcurrent int, timeout time.Duration) *NotificationService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &NotificationService{
		notifiers: notifiers,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:   timeout,
	}
}

// Notify sends the delivery notice to every notifier and waits for all of
// them. Callers who must not block run Notify on its own goroutine.
func (s *NotificationService) Notify(ctx context.Context, d notifier.Delivery) {
	var wg sync.WaitGroup
	for _, n := range s.notifiers {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			slog.Warn("delivery notice skipped",
				"provider", n.Name(),
				"message_id", d.MessageID,
				"error", err,
			)
			continue
		}
		wg.Add(1)
		go func(n notifier.Notifier) {
			defer wg.Done()
			defer s.sem.Release(1)

			nctx := ctx
			if s.timeout > 0 {
				var cancel context.CancelFunc
				nctx, cancel = context.WithTimeout(ctx, s.timeout)
				defer cancel()
			}

			if err := n.Notify(nctx, d); err != nil {
				slog.Warn("delivery notice failed",
					"provider", n.Name(),
					"message_id", d.MessageID,
					"to", d.To,
					"error", err,
				)
				return
			}
			slog.Debug("delivery notice sent", "provider", n.Name(), "message_id", d.MessageID)
		}(n)
	}
	wg.Wait()
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}
