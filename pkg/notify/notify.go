// Package notify delivers short operator messages about briefing runs to
// chat and webhook channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWebhook  Channel = "webhook"
)

// Config enables channels. A channel with empty credentials is not registered.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// Message represents a notification message.
type Message struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url,omitempty"`
	Language string `json:"language,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}

// Dispatcher fans a message out to every registered channel.
type Dispatcher struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher with the channels cfg enables.
func NewDispatcher(cfg Config) *Dispatcher {
	d := &Dispatcher{logger: slog.Default()}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		d.Register(NewTelegramNotifier(cfg.Telegram))
	}
	if cfg.Webhook.URL != "" {
		d.Register(NewWebhookNotifier(cfg.Webhook))
	}
	return d
}

// Register adds a notifier.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers = append(d.notifiers, n)
}

// Len returns the number of registered channels.
func (d *Dispatcher) Len() int { return len(d.notifiers) }

// Dispatch sends msg to every channel. One failing channel does not stop
// the others.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range d.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			d.logger.Error("notification failed", "channel", n.Channel(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Channel(), err))
			continue
		}
		d.logger.Debug("notification sent", "channel", n.Channel(), "title", msg.Title)
	}
	return errors.Join(errs...)
}
