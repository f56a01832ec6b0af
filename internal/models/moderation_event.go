package models

import (
	"time"
	"unicode/utf8"
)

// ActionType enumerates the moderation actions recorded in the ledger.
type ActionType string

// Recorded action types. The set is closed; new actions are added here.
const (
	ActionMessageDeleted ActionType = "message_deleted"
	ActionUserBanned     ActionType = "user_banned"
	ActionUserUnbanned   ActionType = "user_unbanned"
	ActionUserWarned     ActionType = "user_warned"
	ActionUserMuted      ActionType = "user_muted"
	ActionUserUnmuted    ActionType = "user_unmuted"
)

// ActionTypes lists every known action type in display order.
var ActionTypes = []ActionType{
	ActionMessageDeleted,
	ActionUserBanned,
	ActionUserUnbanned,
	ActionUserWarned,
	ActionUserMuted,
	ActionUserUnmuted,
}

// Valid reports whether a is one of the known action types.
func (a ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if a == known {
			return true
		}
	}
	return false
}

// ParseActionType converts s to an ActionType, reporting whether it is known.
func ParseActionType(s string) (ActionType, bool) {
	a := ActionType(s)
	return a, a.Valid()
}

// MaxMessageTextLength is the number of characters of the offending message
// kept in the ledger.
const MaxMessageTextLength = 500

// ModerationEvent is one append-only audit record of a moderation decision.
// Chat and user are referenced by their platform ids only.
type ModerationEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ActionType  ActionType `gorm:"type:varchar(32);not null;index:idx_moderation_events_action_chat,priority:1" json:"action_type"`
	UserID      int64      `gorm:"not null" json:"user_id"`
	ChatID      int64      `gorm:"not null;index:idx_moderation_events_action_chat,priority:2;index:idx_moderation_events_chat_created,priority:1" json:"chat_id"`
	Username    *string    `gorm:"type:varchar(255)" json:"username,omitempty"`
	MessageText *string    `gorm:"type:text" json:"message_text,omitempty"`
	Reason      *string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime;index;index:idx_moderation_events_chat_created,priority:2" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ModerationEvent) TableName() string {
	return "moderation_events"
}

// TruncateText cuts s to at most n characters (runes, not bytes).
func TruncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
