// Package moderation applies the content policy to inbound chat traffic and
// executes administrator commands, recording every state change in the
// ledger.
package moderation

import (
	"context"
	"time"
)

// ChatType is the kind of chat a message arrived in.
type ChatType string

// Chat types reported by the messaging platform.
const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsGroup reports whether administrative commands are allowed in the chat.
func (t ChatType) IsGroup() bool {
	return t == ChatGroup || t == ChatSupergroup
}

// User is a chat participant.
type User struct {
	ID        int64
	IsBot     bool
	FirstName string
	Username  string
}

// DisplayName returns the name shown in chat notices.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return "user"
	}
}

// Chat identifies a conversation.
type Chat struct {
	ID    int64
	Type  ChatType
	Title string
}

// Message is one inbound text message. From is nil for anonymous senders.
type Message struct {
	ID      int64
	Chat    Chat
	From    *User
	Text    string
	ReplyTo *Message
	Date    time.Time
}

// MemberStatus is a participant's role in a chat.
type MemberStatus string

// Member statuses.
const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Member is a user's membership in a chat.
type Member struct {
	User   User
	Status MemberStatus
}

// IsAdmin reports whether the member may issue moderation commands.
func (m Member) IsAdmin() bool {
	return m.Status == StatusCreator || m.Status == StatusAdministrator
}

// Gateway is the messaging platform as seen by the moderator.
type Gateway interface {
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	// RestrictMember revokes the user's right to send messages until the
	// given time.
	RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error
	UnrestrictMember(ctx context.Context, chatID, userID int64) error
	GetMember(ctx context.Context, chatID, userID int64) (Member, error)
	// SendMessage posts text to the chat, as a reply when replyTo is non-zero.
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error
}
