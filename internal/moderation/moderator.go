package moderation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"chatwarden/internal/featureflags"
	"chatwarden/internal/ledger"
	"chatwarden/internal/models"
	"chatwarden/internal/observability"
	"chatwarden/internal/policy"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultMuteDuration applies when /mute names no duration.
const DefaultMuteDuration = time.Hour

// Options tunes a Moderator.
type Options struct {
	Flags *featureflags.Manager
	// MuteDuration is the default /mute length.
	MuteDuration time.Duration
	// BotUsername, when set, makes commands addressed to another bot
	// ("/ban@otherbot") ignored.
	BotUsername string
	Logger      *slog.Logger
	Now         func() time.Time
}

// Outcome summarizes what handling one message did.
type Outcome struct {
	// Command is the command name without the slash, empty for plain text.
	Command string
	Verdict policy.Verdict
	// Deleted is true when the gateway confirmed the message removal.
	Deleted bool
	// Action is the ledger action the message produced, if any.
	Action   models.ActionType
	Receipt  ledger.Receipt
	Notice   string
	Rejected bool
}

// Moderator ties the gateway, matcher and ledger together.
type Moderator struct {
	gw      Gateway
	matcher *policy.Matcher
	ledger  *ledger.Ledger
	flags   *featureflags.Manager
	muteFor time.Duration
	botName string
	log     *slog.Logger
	now     func() time.Time
}

// New builds a Moderator.
func New(gw Gateway, matcher *policy.Matcher, l *ledger.Ledger, opts Options) *Moderator {
	m := &Moderator{
		gw:      gw,
		matcher: matcher,
		ledger:  l,
		flags:   opts.Flags,
		muteFor: opts.MuteDuration,
		botName: strings.ToLower(strings.TrimPrefix(opts.BotUsername, "@")),
		log:     opts.Logger,
		now:     opts.Now,
	}
	if m.muteFor <= 0 {
		m.muteFor = DefaultMuteDuration
	}
	if m.log == nil {
		m.log = observability.Logger
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Handle routes msg to HandleCommand or HandleMessage.
func (m *Moderator) Handle(ctx context.Context, msg Message) Outcome {
	ctx = observability.WithChatID(ctx, msg.Chat.ID)
	if strings.HasPrefix(msg.Text, "/") {
		return m.HandleCommand(ctx, msg)
	}
	return m.HandleMessage(ctx, msg)
}

// HandleMessage applies the content policy to a plain text message. A
// violating message is deleted and the deletion recorded. If the deletion
// fails nothing is recorded, since the chat did not change.
func (m *Moderator) HandleMessage(ctx context.Context, msg Message) (out Outcome) {
	if msg.Text == "" || strings.HasPrefix(msg.Text, "/") {
		return out
	}

	ctx, span := observability.StartSpan(ctx, "moderation.HandleMessage",
		attribute.Int64("chat_id", msg.Chat.ID),
		attribute.Int64("message_id", msg.ID),
	)
	defer func() {
		observability.EndSpan(span, out.Receipt.Err)
	}()

	out.Verdict = m.matcher.Evaluate(msg.Text)
	observability.MessagesEvaluated.WithLabelValues(observability.VerdictLabel(out.Verdict.Violates)).Inc()
	if !out.Verdict.Violates {
		return out
	}
	span.SetAttributes(attribute.StringSlice("matched_terms", out.Verdict.MatchedTerms))

	err := m.gw.DeleteMessage(ctx, msg.Chat.ID, msg.ID)
	observability.ModerationActions.WithLabelValues(string(models.ActionMessageDeleted), observability.Result(err)).Inc()
	if err != nil {
		m.log.WarnContext(ctx, "could not delete violating message",
			slog.Int64("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return out
	}
	out.Deleted = true
	out.Action = models.ActionMessageDeleted

	sender := senderOf(msg)
	out.Receipt = m.ledger.Append(ctx, models.ModerationEvent{
		ActionType:  models.ActionMessageDeleted,
		UserID:      sender.ID,
		ChatID:      msg.Chat.ID,
		Username:    models.StringPtr(sender.Username),
		MessageText: models.StringPtr(msg.Text),
		Reason:      models.StringPtr(deletionReason(out.Verdict)),
	})

	m.log.WarnContext(ctx, "deleted violating message",
		slog.Int64("user_id", sender.ID),
		slog.String("username", sender.Username),
		slog.Int("matches", len(out.Verdict.MatchedTerms)),
		slog.Bool("recorded", out.Receipt.Recorded),
	)

	if m.flags.Enabled(featureflags.DeleteNotice, msg.Chat.ID) {
		out.Notice = deletionNotice(sender)
		if err := m.gw.SendMessage(ctx, msg.Chat.ID, out.Notice, 0); err != nil {
			m.log.DebugContext(ctx, "could not send deletion notice", slog.String("error", err.Error()))
		}
	}
	return out
}

func senderOf(msg Message) User {
	if msg.From == nil {
		return User{}
	}
	return *msg.From
}

func deletionReason(v policy.Verdict) string {
	return "contains prohibited language: " + strings.Join(v.MatchedTerms, ", ")
}

func deletionNotice(u User) string {
	return "⚠️ " + u.DisplayName() + ", your message was removed for breaking the chat rules."
}

// record appends an event for a completed administrative action.
func (m *Moderator) record(ctx context.Context, action models.ActionType, chatID int64, target User, reason string) ledger.Receipt {
	r := m.ledger.Append(ctx, models.ModerationEvent{
		ActionType: action,
		UserID:     target.ID,
		ChatID:     chatID,
		Username:   models.StringPtr(target.Username),
		Reason:     models.StringPtr(reason),
	})
	if !r.Recorded {
		m.log.WarnContext(ctx, "moderation action not recorded",
			slog.String("action_type", string(action)),
			slog.Int64("user_id", target.ID),
		)
	}
	return r
}

// reply posts text to msg's chat. Failures are logged only.
func (m *Moderator) reply(ctx context.Context, msg Message, text string) {
	if err := m.gw.SendMessage(ctx, msg.Chat.ID, text, msg.ID); err != nil {
		m.log.WarnContext(ctx, "could not send reply", slog.String("error", err.Error()))
	}
}
