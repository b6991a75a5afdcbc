// Package mailer sends one message to many recipients, one at a time.
//
// Every recipient gets its own SMTP session. Failures are recorded per
// recipient and never abort the remaining sends; nothing is retried.
package mailer

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Delivery statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Message is the content shared by every recipient.
type Message struct {
	Subject string
	Body    string
}

// Result is the outcome for one recipient.
type Result struct {
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Sender delivers a message to a single recipient.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}

// Dispatcher fans a message out over a Sender sequentially.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger discards output.
func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// SendAll sends msg to each recipient in order and returns exactly one
// Result per recipient, in the same order. A slow recipient delays all that
// follow it.
func (d *Dispatcher) SendAll(ctx context.Context, msg Message, recipients []string) []Result {
	results := make([]Result, 0, len(recipients))

	for _, to := range recipients {
		start := time.Now()
		err := d.sender.Send(ctx, to, msg)
		if err != nil {
			d.logger.Warn("email delivery failed", "recipient", to, "error", err, "duration", time.Since(start))
			results = append(results, Result{Recipient: to, Status: StatusFailed, Error: err.Error()})
			continue
		}
		d.logger.Info("email delivered", "recipient", to, "duration", time.Since(start))
		results = append(results, Result{Recipient: to, Status: StatusSuccess})
	}

	return results
}
