package nats

import (
	"fmt"

	natsio "github.com/nats-io/nats.go"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		url := config["url"]
		if url == "" {
			return nil, notifier.ErrNotConfigured
		}
		nc, err := natsio.Connect(url)
		if err != nil {
			return nil, fmt.Errorf("nats notifier connect: %w", err)
		}
		return NewNotifier(nc), nil
	})
}
