package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"chatwarden/internal/models"
	"chatwarden/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Chat replies. They never carry internal error text.
const (
	welcomeText = "👋 Hi! I am a moderation bot.\n\n" +
		"I help keep this chat in order:\n" +
		"• I remove messages with obscene language\n" +
		"• I ban and mute rule breakers\n" +
		"• I keep moderation statistics\n\n" +
		"Use /help to see the commands."

	helpText = "📋 Commands:\n\n" +
		"/start - introduce the bot\n" +
		"/help - show this help\n" +
		"/stats - moderation statistics for this chat\n\n" +
		"Administrators only:\n" +
		"/ban [user_id] - ban a user (or reply to their message)\n" +
		"/unban user_id - lift a ban\n" +
		"/mute [user_id] [minutes] - stop a user from writing\n" +
		"/unmute [user_id] - let a muted user write again\n" +
		"/warn [user_id] [reason] - warn a user\n\n" +
		"Messages with obscene language are removed automatically."

	groupOnlyText      = "❌ This command only works in groups."
	adminOnlyText      = "❌ Only administrators can use this command."
	permissionText     = "❌ Could not check your permissions. Please try again later."
	unknownUserText    = "❌ Could not find that user in this chat."
	statsFailedText    = "❌ Statistics are unavailable right now."
	banUsageText       = "❌ Usage: /ban [user_id] or reply to the user's message."
	unbanUsageText     = "❌ Usage: /unban user_id"
	muteUsageText      = "❌ Usage: /mute [user_id] [minutes] or reply to the user's message."
	unmuteUsageText    = "❌ Usage: /unmute [user_id] or reply to the user's message."
	warnUsageText      = "❌ Usage: /warn [user_id] [reason] or reply to the user's message."
	actionFailedFormat = "❌ Could not %s the user. Check that the bot is an administrator and try again."
)

type command struct {
	name string
	args []string
}

// parseCommand splits "/name@bot arg1 arg2". ok is false when the text is not
// a command or is addressed to a different bot.
func (m *Moderator) parseCommand(text string) (command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := strings.ToLower(name[at+1:])
		name = name[:at]
		if m.botName != "" && target != m.botName {
			return command{}, false
		}
	}
	name = strings.ToLower(name)
	if name == "" {
		return command{}, false
	}
	return command{name: name, args: fields[1:]}, true
}

// HandleCommand executes an administrator or informational command. Unknown
// commands are ignored.
func (m *Moderator) HandleCommand(ctx context.Context, msg Message) (out Outcome) {
	cmd, ok := m.parseCommand(msg.Text)
	if !ok {
		return out
	}
	out.Command = cmd.name

	ctx, span := observability.StartSpan(ctx, "moderation.HandleCommand",
		attribute.String("command", cmd.name),
		attribute.Int64("chat_id", msg.Chat.ID),
	)
	defer func() { observability.EndSpan(span, nil) }()

	attrs := []any{slog.String("command", cmd.name)}
	if msg.From != nil {
		attrs = append(attrs, slog.Int64("user_id", msg.From.ID))
	}
	m.log.InfoContext(ctx, "command received", attrs...)

	switch cmd.name {
	case "start":
		out.Notice = welcomeText
	case "help":
		out.Notice = helpText
	case "stats":
		out.Notice = m.Stats(ctx, msg.Chat.ID)
	case "ban":
		m.ban(ctx, msg, cmd, &out)
	case "unban":
		m.unban(ctx, msg, cmd, &out)
	case "mute":
		m.mute(ctx, msg, cmd, &out)
	case "unmute":
		m.unmute(ctx, msg, cmd, &out)
	case "warn":
		m.warn(ctx, msg, cmd, &out)
	default:
		out.Command = ""
		return out
	}

	if out.Notice != "" {
		m.reply(ctx, msg, out.Notice)
	}
	return out
}

// Stats renders the moderation counters for chatID.
func (m *Moderator) Stats(ctx context.Context, chatID int64) string {
	if !m.ledger.Available() {
		return statsFailedText
	}
	counts := m.ledger.Counts(ctx, &chatID)
	return fmt.Sprintf("📊 Moderation statistics for this chat:\n\n"+
		"🗑️ Messages removed: %d\n"+
		"🚫 Users banned: %d\n"+
		"🔇 Users muted: %d\n"+
		"⚠️ Warnings issued: %d",
		counts[models.ActionMessageDeleted],
		counts[models.ActionUserBanned],
		counts[models.ActionUserMuted],
		counts[models.ActionUserWarned],
	)
}

// authorize checks the chat type and the caller's status. On refusal it sets
// the notice and returns false.
func (m *Moderator) authorize(ctx context.Context, msg Message, out *Outcome) bool {
	if !msg.Chat.Type.IsGroup() {
		out.Rejected = true
		out.Notice = groupOnlyText
		return false
	}
	if msg.From == nil {
		out.Rejected = true
		return false
	}
	member, err := m.gw.GetMember(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		m.log.ErrorContext(ctx, "could not check administrator status",
			slog.Int64("user_id", msg.From.ID),
			slog.String("error", err.Error()),
		)
		out.Rejected = true
		out.Notice = permissionText
		return false
	}
	if !member.IsAdmin() {
		out.Rejected = true
		out.Notice = adminOnlyText
		return false
	}
	return true
}

// resolveTarget picks the command target from the replied-to message or from
// the first argument, returning the arguments that follow the target. On
// failure it returns the notice to show instead; usage is shown when no
// target was given.
func (m *Moderator) resolveTarget(ctx context.Context, msg Message, args []string, usage string) (User, []string, string) {
	if msg.ReplyTo != nil && msg.ReplyTo.From != nil {
		return *msg.ReplyTo.From, args, ""
	}
	if len(args) == 0 {
		return User{}, nil, usage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id == 0 {
		return User{}, nil, usage
	}

	member, err := m.gw.GetMember(ctx, msg.Chat.ID, id)
	if err != nil {
		m.log.InfoContext(ctx, "command target lookup failed",
			slog.Int64("target_id", id),
			slog.String("error", err.Error()),
		)
		return User{}, nil, unknownUserText
	}
	if member.User.ID == 0 {
		member.User.ID = id
	}
	return member.User, args[1:], ""
}

func targetName(u User) string {
	if u.Username != "" {
		return fmt.Sprintf("%s (@%s)", u.DisplayName(), u.Username)
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return strconv.FormatInt(u.ID, 10)
}

func (m *Moderator) applied(ctx context.Context, action models.ActionType, msg Message, target User, err error) bool {
	observability.ModerationActions.WithLabelValues(string(action), observability.Result(err)).Inc()
	if err != nil {
		m.log.ErrorContext(ctx, "moderation action failed",
			slog.String("action_type", string(action)),
			slog.Int64("target_id", target.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	m.log.InfoContext(ctx, "moderation action applied",
		slog.String("action_type", string(action)),
		slog.Int64("target_id", target.ID),
		slog.Int64("admin_id", msg.From.ID),
	)
	return true
}

func (m *Moderator) ban(ctx context.Context, msg Message, cmd command, out *Outcome) {
	if !m.authorize(ctx, msg, out) {
		return
	}
	target, _, problem := m.resolveTarget(ctx, msg, cmd.args, banUsageText)
	if problem != "" {
		out.Notice = problem
		return
	}

	err := m.gw.BanMember(ctx, msg.Chat.ID, target.ID)
	if !m.applied(ctx, models.ActionUserBanned, msg, target, err) {
		out.Notice = fmt.Sprintf(actionFailedFormat, "ban")
		return
	}
	out.Action = models.ActionUserBanned
	out.Receipt = m.record(ctx, models.ActionUserBanned, msg.Chat.ID, target,
		fmt.Sprintf("banned by administrator %d", msg.From.ID))
	out.Notice = fmt.Sprintf("🚫 User %s has been banned.", targetName(target))
}

func (m *Moderator) unban(ctx context.Context, msg Message, cmd command, out *Outcome) {
	if !m.authorize(ctx, msg, out) {
		return
	}
	if len(cmd.args) == 0 {
		out.Notice = unbanUsageText
		return
	}
	id, err := strconv.ParseInt(cmd.args[0], 10, 64)
	if err != nil || id == 0 {
		out.Notice = unbanUsageText
		return
	}
	target := User{ID: id}

	err = m.gw.UnbanMember(ctx, msg.Chat.ID, id)
	if !m.applied(ctx, models.ActionUserUnbanned, msg, target, err) {
		out.Notice = fmt.Sprintf(actionFailedFormat, "unban")
		return
	}
	out.Action = models.ActionUserUnbanned
	out.Receipt = m.record(ctx, models.ActionUserUnbanned, msg.Chat.ID, target,
		fmt.Sprintf("unbanned by administrator %d", msg.From.ID))
	out.Notice = fmt.Sprintf("✅ User %d has been unbanned.", id)
}

func (m *Moderator) mute(ctx context.Context, msg Message, cmd command, out *Outcome) {
	if !m.authorize(ctx, msg, out) {
		return
	}
	target, rest, problem := m.resolveTarget(ctx, msg, cmd.args, muteUsageText)
	if problem != "" {
		out.Notice = problem
		return
	}

	duration := m.muteFor
	if len(rest) > 0 {
		minutes, err := strconv.Atoi(rest[0])
		if err != nil || minutes <= 0 {
			out.Notice = muteUsageText
			return
		}
		duration = time.Duration(minutes) * time.Minute
	}

	until := m.now().Add(duration)
	err := m.gw.RestrictMember(ctx, msg.Chat.ID, target.ID, until)
	if !m.applied(ctx, models.ActionUserMuted, msg, target, err) {
		out.Notice = fmt.Sprintf(actionFailedFormat, "mute")
		return
	}
	minutes := int(duration / time.Minute)
	out.Action = models.ActionUserMuted
	out.Receipt = m.record(ctx, models.ActionUserMuted, msg.Chat.ID, target,
		fmt.Sprintf("muted for %d minutes by administrator %d", minutes, msg.From.ID))
	out.Notice = fmt.Sprintf("🔇 User %s is muted for %d minutes.", targetName(target), minutes)
}

func (m *Moderator) unmute(ctx context.Context, msg Message, cmd command, out *Outcome) {
	if !m.authorize(ctx, msg, out) {
		return
	}
	target, _, problem := m.resolveTarget(ctx, msg, cmd.args, unmuteUsageText)
	if problem != "" {
		out.Notice = problem
		return
	}

	err := m.gw.UnrestrictMember(ctx, msg.Chat.ID, target.ID)
	if !m.applied(ctx, models.ActionUserUnmuted, msg, target, err) {
		out.Notice = fmt.Sprintf(actionFailedFormat, "unmute")
		return
	}
	out.Action = models.ActionUserUnmuted
	out.Receipt = m.record(ctx, models.ActionUserUnmuted, msg.Chat.ID, target,
		fmt.Sprintf("unmuted by administrator %d", msg.From.ID))
	out.Notice = fmt.Sprintf("🔊 User %s can write again.", targetName(target))
}

// warn records a warning. The only chat change is the notice itself.
func (m *Moderator) warn(ctx context.Context, msg Message, cmd command, out *Outcome) {
	if !m.authorize(ctx, msg, out) {
		return
	}
	target, rest, problem := m.resolveTarget(ctx, msg, cmd.args, warnUsageText)
	if problem != "" {
		out.Notice = problem
		return
	}

	reason := strings.TrimSpace(strings.Join(rest, " "))
	if reason == "" {
		reason = "breaking the chat rules"
	}
	observability.ModerationActions.WithLabelValues(string(models.ActionUserWarned), "ok").Inc()
	out.Action = models.ActionUserWarned
	out.Receipt = m.record(ctx, models.ActionUserWarned, msg.Chat.ID, target,
		fmt.Sprintf("%s (warned by administrator %d)", reason, msg.From.ID))
	out.Notice = fmt.Sprintf("⚠️ %s, you have been warned: %s", targetName(target), reason)
}
