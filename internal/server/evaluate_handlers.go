package server

import (
	"chatwarden/internal/models"
	"chatwarden/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// EvaluateMessage handles POST /api/v1/evaluate. It classifies text without
// acting on it.
func (s *Server) EvaluateMessage(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	verdict := s.matcher.Evaluate(req.Text)
	if verdict.MatchedTerms == nil {
		verdict.MatchedTerms = []string{}
	}
	observability.MessagesEvaluated.WithLabelValues(observability.VerdictLabel(verdict.Violates)).Inc()

	return c.JSON(verdict)
}
