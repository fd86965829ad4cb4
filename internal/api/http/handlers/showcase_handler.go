package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/f4ntasma/codex/internal/api/dto"
	"github.com/f4ntasma/codex/internal/authz"
)

// ShowcaseHandler stands in for the out-of-scope project features. Each
// protected route hands its handler nothing but the resolved
// {userId, role} pair, the contract the rest of the product consumes.
type ShowcaseHandler struct{}

// NewShowcaseHandler returns the handler.
func NewShowcaseHandler() *ShowcaseHandler {
	return &ShowcaseHandler{}
}

// Area responds with the caller's resolved identity for any guarded
// section.
func (h *ShowcaseHandler) Area(section string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal := authz.PrincipalFromContext(c)
		return c.JSON(fiber.Map{"data": fiber.Map{
			"section": section,
			"caller": dto.PrincipalResponse{
				UserID: principal.SubjectID,
				Role:   string(principal.Role),
			},
		}})
	}
}
