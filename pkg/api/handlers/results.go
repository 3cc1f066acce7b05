package handlers

import (
	"github.com/gofiber/fiber/v3"
)

// ListResults handles GET /api/v1/results
func (s *Server) ListResults(c fiber.Ctx) error {
	results, err := s.results.List(c.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list sync results")
		return fiber.ErrInternalServerError
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"results": results,
		"total":   len(results),
	})
}
