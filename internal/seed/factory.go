// Package seed creates demo moderation history for development databases and
// dashboards. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"time"

	"chatwarden/internal/models"

	"github.com/brianvoe/gofakeit/v6"
)

// Options controls what the factory generates.
type Options struct {
	// Chats are the chat ids events are spread over. Defaults to three
	// synthetic supergroups.
	Chats []int64
	// MaxDays bounds how far back created_at is spread.
	MaxDays int
	// Seed makes generation deterministic when non-zero.
	Seed int64
	// DryRun builds events without writing them.
	DryRun bool
}

// Weights of each action type in generated history. Deletions dominate, as
// they do in a live chat.
var actionWeights = []struct {
	action models.ActionType
	weight int
}{
	{models.ActionMessageDeleted, 60},
	{models.ActionUserWarned, 15},
	{models.ActionUserMuted, 10},
	{models.ActionUserUnmuted, 5},
	{models.ActionUserBanned, 7},
	{models.ActionUserUnbanned, 3},
}

var offendingSamples = []string{
	"ты дурак",
	"бл@дь",
	"х у й",
	"what a st*pid idea",
}

// Factory builds moderation events.
type Factory struct {
	faker *gofakeit.Faker
	opts  Options
	now   func() time.Time
}

// NewFactory creates a Factory. A zero opts.Seed seeds from the clock.
func NewFactory(opts Options) *Factory {
	if len(opts.Chats) == 0 {
		opts.Chats = []int64{-1001000000001, -1001000000002, -1001000000003}
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 30
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{faker: gofakeit.New(seed), opts: opts, now: time.Now}
}

// Event builds one event. Overrides run last.
func (f *Factory) Event(overrides ...func(*models.ModerationEvent)) models.ModerationEvent {
	action := f.pickAction()
	username := f.faker.Username()

	ev := models.ModerationEvent{
		ActionType: action,
		UserID:     int64(f.faker.Number(100000, 999999999)),
		ChatID:     f.opts.Chats[f.faker.Number(0, len(f.opts.Chats)-1)],
		Username:   &username,
		CreatedAt:  f.createdAt(),
	}

	switch action {
	case models.ActionMessageDeleted:
		text := fmt.Sprintf("%s %s", f.faker.Sentence(6), offendingSamples[f.faker.Number(0, len(offendingSamples)-1)])
		text = models.TruncateText(text, models.MaxMessageTextLength)
		ev.MessageText = &text
		ev.Reason = models.StringPtr("contains prohibited language")
	case models.ActionUserMuted:
		ev.Reason = models.StringPtr(fmt.Sprintf("muted for %d minutes", f.faker.Number(5, 1440)))
	case models.ActionUserWarned, models.ActionUserBanned:
		ev.Reason = models.StringPtr(f.faker.Sentence(4))
	}

	for _, override := range overrides {
		override(&ev)
	}
	return ev
}

// Events builds n events.
func (f *Factory) Events(n int) []models.ModerationEvent {
	out := make([]models.ModerationEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.Event())
	}
	return out
}

func (f *Factory) pickAction() models.ActionType {
	total := 0
	for _, w := range actionWeights {
		total += w.weight
	}
	roll := f.faker.Number(1, total)
	for _, w := range actionWeights {
		roll -= w.weight
		if roll <= 0 {
			return w.action
		}
	}
	return models.ActionMessageDeleted
}

// createdAt spreads events over the last MaxDays.
func (f *Factory) createdAt() time.Time {
	now := f.now().UTC()
	return f.faker.DateRange(now.AddDate(0, 0, -f.opts.MaxDays), now).UTC()
}
