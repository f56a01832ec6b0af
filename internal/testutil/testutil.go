// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"chatwarden/internal/database"
	"chatwarden/internal/models"
	"chatwarden/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenSQLite returns a migrated in-memory database that lives for the test.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Each pooled connection to :memory: would see its own empty database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// EventRepoStub is an in-memory repository.EventRepository. Setting Err makes
// every call fail with it.
type EventRepoStub struct {
	mu     sync.Mutex
	events []models.ModerationEvent
	nextID uint
	Err    error
	Closed bool
}

var _ repository.EventRepository = (*EventRepoStub)(nil)

// NewEventRepoStub creates an empty stub.
func NewEventRepoStub() *EventRepoStub {
	return &EventRepoStub{nextID: 1}
}

// Create stores a copy of event.
func (s *EventRepoStub) Create(_ context.Context, event *models.ModerationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	event.ID = s.nextID
	s.nextID++
	event.CreatedAt = time.Now().UTC()
	s.events = append(s.events, *event)
	return nil
}

// List returns matching events, newest first.
func (s *EventRepoStub) List(_ context.Context, filter repository.EventFilter) ([]models.ModerationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.ModerationEvent{}
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if filter.ChatID != nil && ev.ChatID != *filter.ChatID {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Count counts matching events.
func (s *EventRepoStub) Count(ctx context.Context, action models.ActionType, chatID *int64) (int64, error) {
	counts, err := s.CountByAction(ctx, chatID)
	if err != nil {
		return 0, err
	}
	return counts[action], nil
}

// CountByAction groups matching events by action type.
func (s *EventRepoStub) CountByAction(_ context.Context, chatID *int64) (map[models.ActionType]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := map[models.ActionType]int64{}
	for _, ev := range s.events {
		if chatID != nil && ev.ChatID != *chatID {
			continue
		}
		counts[ev.ActionType]++
	}
	return counts, nil
}

// Close marks the stub closed.
func (s *EventRepoStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Events returns a snapshot of the stored events in insertion order.
func (s *EventRepoStub) Events() []models.ModerationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ModerationEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ActionsOf returns the action types recorded for chatID, sorted.
func (s *EventRepoStub) ActionsOf(chatID int64) []models.ActionType {
	var out []models.ActionType
	for _, ev := range s.Events() {
		if ev.ChatID == chatID {
			out = append(out, ev.ActionType)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
