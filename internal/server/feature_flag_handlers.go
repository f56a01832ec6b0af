package server

import "github.com/gofiber/fiber/v2"

// ListFlags returns configured feature flags and their state for the chat in
// the chat_id query parameter.
func (s *Server) ListFlags(c *fiber.Ctx) error {
	chatID, err := parseChatScope(c)
	if err != nil {
		return nil
	}
	var id int64
	if chatID != nil {
		id = *chatID
	}

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(id),
	})
}
