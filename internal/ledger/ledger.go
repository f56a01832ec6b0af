// Package ledger records moderation decisions and answers aggregate queries
// over them. Every operation is best-effort: storage failures are logged and
// surface as an unrecorded Receipt, an empty list or a zero count, never as a
// panic or a returned error the caller must handle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chatwarden/internal/cache"
	"chatwarden/internal/models"
	"chatwarden/internal/observability"
	"chatwarden/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// List limits.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

var (
	// ErrInvalidEvent marks an event rejected before reaching storage.
	ErrInvalidEvent = errors.New("invalid moderation event")
	// ErrUnavailable is reported when the ledger has no storage backend.
	ErrUnavailable = errors.New("ledger storage unavailable")
)

// Receipt is the outcome of Append. Recorded is false whenever the event was
// not durably stored, and Err then says why.
type Receipt struct {
	Recorded  bool
	ID        uint
	CreatedAt time.Time
	Err       error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCountCache serves CountByType and Counts through c.
func WithCountCache(c *cache.CountCache) Option {
	return func(l *Ledger) { l.counts = c }
}

// Publisher fans recorded events out to live subscribers.
type Publisher interface {
	PublishEvent(ctx context.Context, ev models.ModerationEvent) error
}

// WithPublisher announces every recorded event through p. Publish failures
// are logged and never change the Receipt.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger overrides the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.log = logger }
}

// Ledger is the append-only moderation audit trail.
type Ledger struct {
	repo      repository.EventRepository
	counts    *cache.CountCache
	publisher Publisher
	log       *slog.Logger
}

// New returns a Ledger over repo. A nil repo yields a Ledger in which every
// operation degrades: nothing is recorded, lists are empty and counts are 0.
func New(repo repository.EventRepository, opts ...Option) *Ledger {
	l := &Ledger{repo: repo, log: observability.Logger}
	for _, opt := range opts {
		opt(l)
	}
	if l.counts == nil {
		l.counts = cache.NewCountCache(nil, 0)
	}
	return l
}

// Available reports whether the ledger has a storage backend.
func (l *Ledger) Available() bool {
	return l.repo != nil
}

// Append records ev. The message text is cut to models.MaxMessageTextLength
// characters; ID and CreatedAt are assigned by storage.
func (l *Ledger) Append(ctx context.Context, ev models.ModerationEvent) (receipt Receipt) {
	ctx, span := observability.StartSpan(ctx, "ledger.Append",
		attribute.String("action_type", string(ev.ActionType)),
		attribute.Int64("chat_id", ev.ChatID),
	)
	defer func() {
		observability.LedgerAppends.WithLabelValues(string(ev.ActionType), appendResult(receipt)).Inc()
		observability.EndSpan(span, receipt.Err)
	}()

	if err := validate(ev); err != nil {
		l.log.WarnContext(ctx, "rejected moderation event", slog.String("error", err.Error()))
		return Receipt{Err: err}
	}
	if l.repo == nil {
		l.log.ErrorContext(ctx, "cannot record moderation event",
			slog.String("action_type", string(ev.ActionType)),
			slog.Int64("chat_id", ev.ChatID),
			slog.String("error", ErrUnavailable.Error()),
		)
		return Receipt{Err: ErrUnavailable}
	}

	if ev.MessageText != nil {
		text := models.TruncateText(*ev.MessageText, models.MaxMessageTextLength)
		ev.MessageText = &text
	}

	if err := l.repo.Create(ctx, &ev); err != nil {
		l.log.ErrorContext(ctx, "failed to record moderation event",
			slog.String("action_type", string(ev.ActionType)),
			slog.Int64("chat_id", ev.ChatID),
			slog.Int64("user_id", ev.UserID),
			slog.String("error", err.Error()),
		)
		return Receipt{Err: err}
	}

	l.counts.Invalidate(ctx, ev.ActionType, ev.ChatID)
	if l.publisher != nil {
		if err := l.publisher.PublishEvent(ctx, ev); err != nil {
			l.log.WarnContext(ctx, "failed to publish moderation event",
				slog.Uint64("event_id", uint64(ev.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return Receipt{Recorded: true, ID: ev.ID, CreatedAt: ev.CreatedAt}
}

func appendResult(r Receipt) string {
	switch {
	case r.Recorded:
		return "recorded"
	case errors.Is(r.Err, ErrInvalidEvent):
		return "invalid"
	default:
		return "failed"
	}
}

func validate(ev models.ModerationEvent) error {
	switch {
	case !ev.ActionType.Valid():
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidEvent, ev.ActionType)
	case ev.UserID == 0:
		return fmt.Errorf("%w: user id is required", ErrInvalidEvent)
	case ev.ChatID == 0:
		return fmt.Errorf("%w: chat id is required", ErrInvalidEvent)
	}
	return nil
}

// ClampLimit applies the list limit rules: non-positive selects
// DefaultListLimit, anything above MaxListLimit is clamped.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// ListEvents returns up to limit events, newest first, for chatID or for all
// chats when chatID is nil.
func (l *Ledger) ListEvents(ctx context.Context, chatID *int64, limit int) []models.ModerationEvent {
	ctx, span := observability.StartSpan(ctx, "ledger.ListEvents")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if l.repo == nil {
		l.queryFailed(ctx, "list", ErrUnavailable)
		return []models.ModerationEvent{}
	}

	events, err := l.repo.List(ctx, repository.EventFilter{ChatID: chatID, Limit: ClampLimit(limit)})
	if err != nil {
		l.queryFailed(ctx, "list", err)
		return []models.ModerationEvent{}
	}
	return events
}

// CountByType returns how many events of action were recorded in chatID, or
// in all chats when chatID is nil.
func (l *Ledger) CountByType(ctx context.Context, action models.ActionType, chatID *int64) int64 {
	ctx, span := observability.StartSpan(ctx, "ledger.CountByType",
		attribute.String("action_type", string(action)),
	)
	var err error
	defer func() { observability.EndSpan(span, err) }()

	n, stamp, ok := l.counts.Get(ctx, action, chatID)
	if ok {
		return n
	}
	if l.repo == nil {
		l.queryFailed(ctx, "count", ErrUnavailable)
		return 0
	}

	n, err = l.repo.Count(ctx, action, chatID)
	if err != nil {
		l.queryFailed(ctx, "count", err)
		return 0
	}
	// Skipped when an append invalidated the key while the count was read.
	_ = l.counts.Set(ctx, action, chatID, n, stamp)
	return n
}

// Counts returns the count of every known action type. Types with no events
// map to 0.
func (l *Ledger) Counts(ctx context.Context, chatID *int64) map[models.ActionType]int64 {
	ctx, span := observability.StartSpan(ctx, "ledger.Counts")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	out := make(map[models.ActionType]int64, len(models.ActionTypes))
	stamps := make(map[models.ActionType]cache.Stamp, len(models.ActionTypes))
	missing := false
	for _, action := range models.ActionTypes {
		n, stamp, ok := l.counts.Get(ctx, action, chatID)
		if !ok {
			missing = true
			stamps[action] = stamp
			continue
		}
		out[action] = n
	}
	if !missing {
		return out
	}

	for _, action := range models.ActionTypes {
		out[action] = 0
	}
	if l.repo == nil {
		l.queryFailed(ctx, "counts", ErrUnavailable)
		return out
	}

	grouped, err := l.repo.CountByAction(ctx, chatID)
	if err != nil {
		l.queryFailed(ctx, "counts", err)
		return out
	}
	for _, action := range models.ActionTypes {
		out[action] = grouped[action]
		if stamp, ok := stamps[action]; ok {
			_ = l.counts.Set(ctx, action, chatID, out[action], stamp)
		}
	}
	return out
}

func (l *Ledger) queryFailed(ctx context.Context, op string, err error) {
	observability.LedgerQueryFailures.WithLabelValues(op).Inc()
	l.log.ErrorContext(ctx, "ledger query failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// Close releases the storage handle. Closing a ledger without storage is a
// no-op.
func (l *Ledger) Close() error {
	if l.repo == nil {
		return nil
	}
	return l.repo.Close()
}
