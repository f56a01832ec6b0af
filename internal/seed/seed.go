package seed

import (
	"context"
	"fmt"
	"log/slog"

	"chatwarden/internal/models"
	"chatwarden/internal/observability"

	"gorm.io/gorm"
)

const batchSize = 200

// Seeder writes generated history to the database. It writes rows directly
// rather than through the ledger so created_at can be backdated.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder binds a Seeder to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, factory: NewFactory(opts)}
}

// ClearAll removes every moderation event.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.factory.opts.DryRun {
		observability.Logger.InfoContext(ctx, "[dry-run] ClearAll: no DB write")
		return nil
	}
	if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.ModerationEvent{}).Error; err != nil {
		return fmt.Errorf("clear moderation events: %w", err)
	}
	return nil
}

// SeedEvents generates and stores n events, returning what was written.
func (s *Seeder) SeedEvents(ctx context.Context, n int) ([]models.ModerationEvent, error) {
	events := s.factory.Events(n)
	if s.factory.opts.DryRun {
		observability.Logger.InfoContext(ctx, "[dry-run] SeedEvents: no DB write", slog.Int("count", len(events)))
		return events, nil
	}
	if len(events) == 0 {
		return events, nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&events, batchSize).Error; err != nil {
		return nil, fmt.Errorf("seed moderation events: %w", err)
	}
	observability.Logger.InfoContext(ctx, "seeded moderation events", slog.Int("count", len(events)))
	return events, nil
}
