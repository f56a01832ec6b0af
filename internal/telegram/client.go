// Package telegram is the Telegram Bot API gateway: an HTTP client for the
// methods the moderator needs, an adapter to moderation.Gateway and a
// long-polling update loop.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatwarden/internal/observability"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// ErrNoToken is returned by NewClient when the bot token is empty.
var ErrNoToken = errors.New("telegram: bot token is required")

// APIError is an ok:false response from the Bot API.
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set when the API asks the client to slow down.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Fatal reports whether retrying cannot help: the token is rejected or
// another consumer holds the update stream.
func (e *APIError) Fatal() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusConflict || e.Code == http.StatusNotFound
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Client calls Bot API methods.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// APIURL defaults to DefaultAPIURL.
	APIURL string
	// Timeout bounds each request including retries. It must exceed the
	// long-poll timeout.
	Timeout time.Duration
	HTTP    []HTTPOption
}

// NewClient returns a client for the bot identified by token.
func NewClient(token string, opts ClientOptions) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}
	apiURL := strings.TrimRight(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: apiURL + "/bot" + token + "/",
		token:    token,
		http:     newHTTPClient(timeout, opts.HTTP...),
	}, nil
}

// call posts params as JSON to method and decodes the result into out, which
// may be nil.
func (c *Client) call(ctx context.Context, method string, params any, out any) (err error) {
	ctx, span := observability.TraceGatewayCall(ctx, method)
	defer func() {
		observability.GatewayRequests.WithLabelValues(method, observability.Result(err)).Inc()
		observability.EndSpan(span, err)
	}()

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, c.scrubToken(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("telegram %s: unexpected response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

// scrubToken masks the bot token, which is part of every request URL, in
// transport errors.
func (c *Client) scrubToken(err error) error {
	if !strings.Contains(err.Error(), c.token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.token, "<token>"))
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var u User
	err := c.call(ctx, "getMe", struct{}{}, &u)
	return u, err
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "edited_message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

// BanChatMember bans a user from the chat.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

// UnbanChatMember lifts a ban. With onlyIfBanned, a member who is not banned
// is left in the chat instead of being removed.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error {
	return c.call(ctx, "unbanChatMember", map[string]any{
		"chat_id":        chatID,
		"user_id":        userID,
		"only_if_banned": onlyIfBanned,
	}, nil)
}

// RestrictChatMember applies perms until the given time. A zero until means
// forever.
func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64, perms ChatPermissions, until time.Time) error {
	params := map[string]any{
		"chat_id":     chatID,
		"user_id":     userID,
		"permissions": perms,
	}
	if !until.IsZero() {
		params["until_date"] = until.Unix()
	}
	return c.call(ctx, "restrictChatMember", params, nil)
}

// GetChatMember returns a user's membership in a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (ChatMember, error) {
	var m ChatMember
	err := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &m)
	return m, err
}

// SendMessage posts text, replying to replyTo when it is non-zero.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (Message, error) {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if replyTo != 0 {
		params["reply_parameters"] = map[string]any{
			"message_id":                  replyTo,
			"allow_sending_without_reply": true,
		}
	}
	var m Message
	err := c.call(ctx, "sendMessage", params, &m)
	return m, err
}
