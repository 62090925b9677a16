// Package email implements a notifier.Notifier that mails delivery notices
// to a fixed operator address over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/arbiterhq/Switchboard/internal/port/notifier"
)

const providerName = "email"

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		port, err := strconv.Atoi(config["port"])
		if err != nil {
			return nil, fmt.Errorf("email: invalid port %q", config["port"])
		}
		cfg := SMTPConfig{
			Host:     config["host"],
			Port:     port,
			From:     config["from"],
			Password: config["password"],
			To:       config["to"],
		}
		if cfg.Host == "" || cfg.From == "" || cfg.To == "" {
			return nil, fmt.Errorf("email: host, from and to are required")
		}
		return NewNotifier(cfg), nil
	})
}

// SMTPConfig holds the configuration for SMTP connections. To is the
// operator address every notice is mailed to.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
}

// Notifier mails delivery notices via SMTP.
type Notifier struct {
	cfg SMTPConfig
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{Durable: true}
}

// Notify mails the delivery notice to the configured operator address.
func (n *Notifier) Notify(_ context.Context, d notifier.Delivery) error {
	if n.cfg.Host == "" || n.cfg.To == "" {
		return notifier.ErrNotConfigured
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	subject := fmt.Sprintf("[switchboard] %s from %s to %s", d.Kind, d.From, d.To)
	body := fmt.Sprintf("Message %s delivered.\n\nFrom: %s\nTo: %s\nType: %s\n\n%s\n",
		d.MessageID, d.From, d.To, d.Kind, d.Summary)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.cfg.From, n.cfg.To, subject, body)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	return smtp.SendMail(addr, auth, n.cfg.From, []string{n.cfg.To}, []byte(msg))
}
