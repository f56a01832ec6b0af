package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatwarden/internal/moderation"
	"chatwarden/internal/observability"

	"golang.org/x/sync/errgroup"
)

// Handler processes one inbound message.
type Handler func(ctx context.Context, msg moderation.Message)

// PollerOptions configures a Poller.
type PollerOptions struct {
	// Timeout is the long-poll wait passed to getUpdates.
	Timeout time.Duration
	// Workers bounds concurrently handled messages.
	Workers int
	// HandlerTimeout bounds one message's handling.
	HandlerTimeout time.Duration
	// MaxBackoff caps the wait after consecutive failures.
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// Poller pulls updates with getUpdates and dispatches their messages.
type Poller struct {
	client *Client
	opts   PollerOptions
	log    *slog.Logger
}

// NewPoller returns a Poller over client.
func NewPoller(client *Client, opts PollerOptions) *Poller {
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = observability.Logger
	}
	return &Poller{client: client, opts: opts, log: log}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers. It
// returns nil on cancellation and an error only when the Bot API rejects the
// bot outright.
func (p *Poller) Run(ctx context.Context, handle Handler) error {
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	defer func() { _ = g.Wait() }()

	var offset int64
	failures := 0

	p.log.Info("Update polling started", slog.Int("workers", p.opts.Workers))
	for {
		if ctx.Err() != nil {
			p.log.Info("Update polling stopped")
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.opts.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Fatal() {
				return fmt.Errorf("polling stopped: %w", err)
			}

			failures++
			wait := p.backoff(failures, err)
			p.log.Warn("getUpdates failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", wait),
			)
			sleep(ctx, wait)
			continue
		}
		failures = 0

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			observability.UpdatesReceived.Inc()

			m := u.message()
			if m == nil {
				continue
			}
			msg := m.ToModeration()
			g.Go(func() error {
				p.dispatch(ctx, handle, msg)
				return nil
			})
		}
	}
}

// dispatch runs handle on a context that survives poller shutdown, so a
// message that was already taken is handled to completion.
func (p *Poller) dispatch(parent context.Context, handle Handler, msg moderation.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.opts.HandlerTimeout)
	defer cancel()
	ctx = observability.WithCorrelationID(ctx, observability.NewCorrelationID())

	defer func() {
		if r := recover(); r != nil {
			p.log.ErrorContext(ctx, "message handler panicked",
				slog.Int64("chat_id", msg.Chat.ID),
				slog.Any("panic", r),
			)
		}
	}()
	handle(ctx, msg)
}

func (p *Poller) backoff(failures int, err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	wait := time.Second << min(failures-1, 10)
	if wait > p.opts.MaxBackoff {
		wait = p.opts.MaxBackoff
	}
	return wait
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
