package telegram

import (
	"time"

	"chatwarden/internal/moderation"
)

// Update is one entry from getUpdates.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// message returns the message the update carries, new or edited.
func (u Update) message() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is a Telegram chat.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// Message is a Telegram message. Media captions are moderated like text.
type Message struct {
	MessageID      int64    `json:"message_id"`
	From           *User    `json:"from,omitempty"`
	Chat           Chat     `json:"chat"`
	Date           int64    `json:"date"`
	Text           string   `json:"text,omitempty"`
	Caption        string   `json:"caption,omitempty"`
	ReplyToMessage *Message `json:"reply_to_message,omitempty"`
}

// ChatMember is the result of getChatMember.
type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// ChatPermissions is the subset of member permissions the bot toggles.
type ChatPermissions struct {
	CanSendMessages      bool `json:"can_send_messages"`
	CanSendAudios        bool `json:"can_send_audios"`
	CanSendDocuments     bool `json:"can_send_documents"`
	CanSendPhotos        bool `json:"can_send_photos"`
	CanSendVideos        bool `json:"can_send_videos"`
	CanSendVideoNotes    bool `json:"can_send_video_notes"`
	CanSendVoiceNotes    bool `json:"can_send_voice_notes"`
	CanSendPolls         bool `json:"can_send_polls"`
	CanSendOtherMessages bool `json:"can_send_other_messages"`
	CanAddWebPagePreview bool `json:"can_add_web_page_previews"`
}

// mutedPermissions revokes every send permission.
var mutedPermissions = ChatPermissions{}

// restoredPermissions is what a regular member may do.
var restoredPermissions = ChatPermissions{
	CanSendMessages:      true,
	CanSendAudios:        true,
	CanSendDocuments:     true,
	CanSendPhotos:        true,
	CanSendVideos:        true,
	CanSendVideoNotes:    true,
	CanSendVoiceNotes:    true,
	CanSendPolls:         true,
	CanSendOtherMessages: true,
	CanAddWebPagePreview: true,
}

func (u User) toModeration() moderation.User {
	return moderation.User{
		ID:        u.ID,
		IsBot:     u.IsBot,
		FirstName: u.FirstName,
		Username:  u.Username,
	}
}

// ToModeration converts m for the moderator.
func (m Message) ToModeration() moderation.Message {
	out := moderation.Message{
		ID: m.MessageID,
		Chat: moderation.Chat{
			ID:    m.Chat.ID,
			Type:  moderation.ChatType(m.Chat.Type),
			Title: m.Chat.Title,
		},
		Text: m.Text,
		Date: time.Unix(m.Date, 0).UTC(),
	}
	if out.Text == "" {
		out.Text = m.Caption
	}
	if m.From != nil {
		u := m.From.toModeration()
		out.From = &u
	}
	if m.ReplyToMessage != nil {
		reply := m.ReplyToMessage.ToModeration()
		out.ReplyTo = &reply
	}
	return out
}
