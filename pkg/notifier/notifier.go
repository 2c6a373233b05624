// Package notifier delivers reminder notifications over the configured
// channels. Delivery is best-effort: the caller records whether an attempt
// succeeded but never fails a workflow on a notifier error.
package notifier

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNoRecipient means the account carries no address any channel can use.
var ErrNoRecipient = errors.New("no deliverable address for account")

// Notification is one reminder to deliver.
type Notification struct {
	RunID          string
	Topic          string
	Goal           string
	Minutes        int
	Email          string
	Name           string
	TelegramChatID int64
}

// Notifier attempts delivery of one notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Fanout tries every channel the notification has an address for and
// succeeds when at least one delivery succeeded.
type Fanout struct {
	channels []Notifier
	logger   zerolog.Logger
}

// NewFanout creates a fanout over the given channels.
func NewFanout(logger zerolog.Logger, channels ...Notifier) *Fanout {
	return &Fanout{
		channels: channels,
		logger:   logger.With().Str("component", "notifier").Logger(),
	}
}

// Notify delivers n over each channel. ErrNoRecipient from a channel means
// it had nothing to deliver to and is not counted as a failure.
func (f *Fanout) Notify(ctx context.Context, n Notification) error {
	attempted := false
	delivered := false

	for _, ch := range f.channels {
		err := ch.Notify(ctx, n)
		if errors.Is(err, ErrNoRecipient) {
			continue
		}
		attempted = true
		if err != nil {
			f.logger.Warn().Err(err).Str("run_id", n.RunID).Msg("Reminder delivery failed on channel")
			continue
		}
		delivered = true
	}

	if !attempted {
		return ErrNoRecipient
	}
	if !delivered {
		return errors.New("all reminder channels failed")
	}
	return nil
}
