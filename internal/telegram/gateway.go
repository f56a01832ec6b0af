package telegram

import (
	"context"
	"time"

	"chatwarden/internal/moderation"
)

// Gateway adapts Client to moderation.Gateway.
type Gateway struct {
	client *Client
}

var _ moderation.Gateway = (*Gateway)(nil)

// NewGateway wraps client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return g.client.DeleteMessage(ctx, chatID, messageID)
}

func (g *Gateway) BanMember(ctx context.Context, chatID, userID int64) error {
	return g.client.BanChatMember(ctx, chatID, userID)
}

// UnbanMember lifts a ban without kicking users who are not banned.
func (g *Gateway) UnbanMember(ctx context.Context, chatID, userID int64) error {
	return g.client.UnbanChatMember(ctx, chatID, userID, true)
}

func (g *Gateway) RestrictMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	return g.client.RestrictChatMember(ctx, chatID, userID, mutedPermissions, until)
}

func (g *Gateway) UnrestrictMember(ctx context.Context, chatID, userID int64) error {
	return g.client.RestrictChatMember(ctx, chatID, userID, restoredPermissions, time.Time{})
}

func (g *Gateway) GetMember(ctx context.Context, chatID, userID int64) (moderation.Member, error) {
	m, err := g.client.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return moderation.Member{}, err
	}
	return moderation.Member{
		User:   m.User.toModeration(),
		Status: moderation.MemberStatus(m.Status),
	}, nil
}

func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) error {
	_, err := g.client.SendMessage(ctx, chatID, text, replyTo)
	return err
}
