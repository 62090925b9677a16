package main

// Blank imports register optional notifier providers with the registry.
// Providers are only instantiated when named in the notify config section.
import (
	_ "github.com/arbiterhq/Switchboard/internal/adapter/discord"
	_ "github.com/arbiterhq/Switchboard/internal/adapter/email"
	_ "github.com/arbiterhq/Switchboard/internal/adapter/slack"
)
