package server

import (
	"errors"
	"strconv"
	"strings"

	"chatwarden/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseChatScope reads the optional chat_id query parameter. An absent value
// means all chats. On a malformed value it writes a 400 JSON response and
// returns errResponseWritten.
func parseChatScope(c *fiber.Ctx) (*int64, error) {
	raw := strings.TrimSpace(c.Query("chat_id"))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid chat ID"))
		return nil, errResponseWritten
	}
	return &id, nil
}
