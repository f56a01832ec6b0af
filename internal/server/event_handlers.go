package server

import (
	"errors"

	"chatwarden/internal/ledger"
	"chatwarden/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RecordEvent handles POST /api/v1/events. Events recorded through the API
// come from moderation done outside the bot, e.g. by a dashboard.
func (s *Server) RecordEvent(c *fiber.Ctx) error {
	var req struct {
		ActionType  string `json:"action_type"`
		UserID      int64  `json:"user_id"`
		ChatID      int64  `json:"chat_id"`
		Username    string `json:"username"`
		MessageText string `json:"message_text"`
		Reason      string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	receipt := s.ledger.Append(c.UserContext(), models.ModerationEvent{
		ActionType:  models.ActionType(req.ActionType),
		UserID:      req.UserID,
		ChatID:      req.ChatID,
		Username:    models.StringPtr(req.Username),
		MessageText: models.StringPtr(req.MessageText),
		Reason:      models.StringPtr(req.Reason),
	})

	switch {
	case receipt.Recorded:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"recorded":   true,
			"id":         receipt.ID,
			"created_at": receipt.CreatedAt,
		})
	case errors.Is(receipt.Err, ledger.ErrInvalidEvent):
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid moderation event", receipt.Err))
	default:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"recorded": false,
			"error":    "moderation ledger unavailable",
		})
	}
}

// ListEvents handles GET /api/v1/events?chat_id=&limit=. Newest first.
func (s *Server) ListEvents(c *fiber.Ctx) error {
	chatID, err := parseChatScope(c)
	if err != nil {
		return nil
	}
	limit := c.QueryInt("limit", ledger.DefaultListLimit)

	return c.JSON(s.ledger.ListEvents(c.UserContext(), chatID, limit))
}

// CountEvents handles GET /api/v1/stats?chat_id=. Every action type is
// present in the response.
func (s *Server) CountEvents(c *fiber.Ctx) error {
	chatID, err := parseChatScope(c)
	if err != nil {
		return nil
	}
	return c.JSON(s.ledger.Counts(c.UserContext(), chatID))
}

// CountEventsByType handles GET /api/v1/stats/:action?chat_id=.
func (s *Server) CountEventsByType(c *fiber.Ctx) error {
	action, ok := models.ParseActionType(c.Params("action"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown action type"))
	}
	chatID, err := parseChatScope(c)
	if err != nil {
		return nil
	}

	return c.JSON(fiber.Map{
		"action_type": action,
		"count":       s.ledger.CountByType(c.UserContext(), action, chatID),
	})
}
