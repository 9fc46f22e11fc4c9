package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Sender delivers one message to one webhook.
type Sender interface {
	Send(ctx context.Context, url, message string) error
}

// Dispatcher fans messages out to a webhook concurrently.
type Dispatcher struct {
	sender Sender
	log    *slog.Logger
}

// NewDispatcher returns a Dispatcher using sender for each message.
func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender: sender,
		log:    logger.With("component", "dispatcher"),
	}
}

// Dispatch sends every message to url in its own goroutine and waits for all
// of them. It returns the first failure; deliveries that already succeeded
// are not undone and in-flight siblings are not cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, messages []string) error {
	var g errgroup.Group
	for i, msg := range messages {
		g.Go(func() error {
			if err := d.sender.Send(ctx, url, msg); err != nil {
				d.log.Error("message delivery failed", "index", i, "error", err)
				return fmt.Errorf("deliver message %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}
