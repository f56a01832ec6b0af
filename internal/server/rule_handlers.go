package server

import (
	"chatwarden/internal/models"
	"chatwarden/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ListRules handles GET /api/v1/rules. Literal terms are reported as a count
// only; the pattern sources are listed.
func (s *Server) ListRules(c *fiber.Ctx) error {
	rules := s.matcher.Rules()
	return c.JSON(fiber.Map{
		"literal_count": rules.LiteralCount(),
		"patterns":      rules.Patterns(),
	})
}

// AddWord handles POST /api/v1/rules/words.
func (s *Server) AddWord(c *fiber.Ctx) error {
	var req struct {
		Word string `json:"word"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.matcher.AddWord(req.Word); err != nil {
		observability.RuleRegistrations.WithLabelValues("literal", "rejected").Inc()
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid word", err))
	}
	observability.RuleRegistrations.WithLabelValues("literal", "ok").Inc()
	observability.Logger.InfoContext(c.UserContext(), "literal rule registered")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"literal_count": s.matcher.Rules().LiteralCount(),
	})
}

// AddPattern handles POST /api/v1/rules/patterns. A pattern that does not
// compile is rejected and the rules stay unchanged.
func (s *Server) AddPattern(c *fiber.Ctx) error {
	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if err := s.matcher.AddPattern(req.Pattern); err != nil {
		observability.RuleRegistrations.WithLabelValues("pattern", "rejected").Inc()
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid pattern", err))
	}
	observability.RuleRegistrations.WithLabelValues("pattern", "ok").Inc()
	observability.Logger.InfoContext(c.UserContext(), "pattern rule registered", "pattern", req.Pattern)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"pattern":  req.Pattern,
		"patterns": s.matcher.Rules().Patterns(),
	})
}
