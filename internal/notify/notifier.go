// Package notify pushes pipeline and trading events to operator channels.
// The pipeline emits run summaries, the trading service emits execution
// results; the notifier decides which events are enabled and fans them out
// to every configured channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Event classifies a notification. Operators enable a subset via the
// notifications config; an empty config enables everything.
type Event string

const (
	EventRunCompleted  Event = "run_completed"
	EventRunFailed     Event = "run_failed"
	EventSignal        Event = "signal"
	EventTradeExecuted Event = "trade_executed"
	EventTradeFailed   Event = "trade_failed"
)

// Notification is one message bound for the operator channels.
type Notification struct {
	Event Event
	Title string
	Body  string
}

// Sender delivers a notification over one channel.
type Sender interface {
	Deliver(ctx context.Context, n Notification) error
	Channel() string
}

// Notifier applies the event enablement policy and fans notifications out to
// every sender. One channel failing never blocks the others.
type Notifier struct {
	senders []Sender
	enabled map[Event]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. events
// holds the enabled event names from the config; an empty list enables every
// event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	enabled := make(map[Event]bool, len(events))
	for _, e := range events {
		if name := strings.TrimSpace(e); name != "" {
			enabled[Event(name)] = true
		}
	}
	return &Notifier{
		senders: senders,
		enabled: enabled,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the event to every channel, provided the event is enabled.
// A disabled event is dropped silently; that is policy, not failure.
func (n *Notifier) Notify(ctx context.Context, event Event, title, body string) error {
	if len(n.enabled) > 0 && !n.enabled[event] {
		n.logger.DebugContext(ctx, "event disabled, dropping notification",
			slog.String("event", string(event)),
		)
		return nil
	}
	return n.deliver(ctx, Notification{Event: event, Title: title, Body: body})
}

func (n *Notifier) deliver(ctx context.Context, msg Notification) error {
	var errs []error
	for _, sender := range n.senders {
		if err := sender.Deliver(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "notification delivery failed",
				slog.String("channel", sender.Channel()),
				slog.String("event", string(msg.Event)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", sender.Channel(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification delivered",
			slog.String("channel", sender.Channel()),
			slog.String("event", string(msg.Event)),
		)
	}
	return errors.Join(errs...)
}
