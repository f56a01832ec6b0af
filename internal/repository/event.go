// Package repository provides data access for moderation events.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatwarden/internal/models"
	"chatwarden/internal/observability"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrConstraintViolation is returned when the database rejects an event.
var ErrConstraintViolation = errors.New("moderation event violates a database constraint")

const eventsTable = "moderation_events"

// EventFilter narrows List queries. A nil ChatID spans all chats.
type EventFilter struct {
	ChatID *int64
	Limit  int
}

// EventRepository is the append-only store for moderation events.
type EventRepository interface {
	Create(ctx context.Context, event *models.ModerationEvent) error
	List(ctx context.Context, filter EventFilter) ([]models.ModerationEvent, error)
	Count(ctx context.Context, action models.ActionType, chatID *int64) (int64, error)
	CountByAction(ctx context.Context, chatID *int64) (map[models.ActionType]int64, error)
	Close() error
}

type eventRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewEventRepository creates a gorm-backed event repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db, log: observability.NewRepoLogger(eventsTable)}
}

func (r *eventRepository) system() string {
	return r.db.Dialector.Name()
}

// Create inserts event. ID and CreatedAt are always assigned by the database
// layer, overwriting whatever the caller set.
func (r *eventRepository) Create(ctx context.Context, event *models.ModerationEvent) (err error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Create", eventsTable, r.system())
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("create", eventsTable)()

	event.ID = 0
	event.CreatedAt = time.Time{}

	if err = r.db.WithContext(ctx).Create(event).Error; err != nil {
		err = classify(err)
		r.log.LogError(ctx, err, "create", "action_type", string(event.ActionType), "chat_id", event.ChatID)
		return err
	}

	r.log.LogCreate(ctx, map[string]interface{}{
		"id":          event.ID,
		"action_type": string(event.ActionType),
		"chat_id":     event.ChatID,
	})
	return nil
}

func (r *eventRepository) List(ctx context.Context, filter EventFilter) (events []models.ModerationEvent, err error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "List", eventsTable, r.system())
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("list", eventsTable)()

	q := r.db.WithContext(ctx).Model(&models.ModerationEvent{})
	if filter.ChatID != nil {
		q = q.Where("chat_id = ?", *filter.ChatID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	events = []models.ModerationEvent{}
	if err = q.Order("created_at DESC").Order("id DESC").Find(&events).Error; err != nil {
		err = classify(err)
		r.log.LogError(ctx, err, "list")
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) Count(ctx context.Context, action models.ActionType, chatID *int64) (count int64, err error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "Count", eventsTable, r.system())
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("count", eventsTable)()

	q := r.db.WithContext(ctx).Model(&models.ModerationEvent{}).Where("action_type = ?", action)
	if chatID != nil {
		q = q.Where("chat_id = ?", *chatID)
	}
	if err = q.Count(&count).Error; err != nil {
		err = classify(err)
		r.log.LogError(ctx, err, "count", "action_type", string(action))
		return 0, err
	}
	return count, nil
}

type actionCount struct {
	ActionType models.ActionType
	Total      int64
}

// CountByAction returns the number of events per action type. Action types
// with no events are absent from the map.
func (r *eventRepository) CountByAction(ctx context.Context, chatID *int64) (counts map[models.ActionType]int64, err error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "CountByAction", eventsTable, r.system())
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("count_by_action", eventsTable)()

	q := r.db.WithContext(ctx).Model(&models.ModerationEvent{}).
		Select("action_type, COUNT(*) AS total")
	if chatID != nil {
		q = q.Where("chat_id = ?", *chatID)
	}

	var rows []actionCount
	if err = q.Group("action_type").Scan(&rows).Error; err != nil {
		err = classify(err)
		r.log.LogError(ctx, err, "count_by_action")
		return nil, err
	}

	counts = make(map[models.ActionType]int64, len(rows))
	for _, row := range rows {
		counts[row.ActionType] = row.Total
	}
	return counts, nil
}

func (r *eventRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// classify maps PostgreSQL integrity errors onto ErrConstraintViolation.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23505", "23514":
			return fmt.Errorf("%w: %s (%s)", ErrConstraintViolation, pgErr.ConstraintName, pgErr.Code)
		}
	}
	return err
}
