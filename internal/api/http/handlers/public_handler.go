package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/balu-property/damage-service/internal/service"
)

// PublicHandler serves share links without a bearer token.
type PublicHandler struct {
	tickets *service.TicketService
}

// NewPublicHandler constructs handler.
func NewPublicHandler(tickets *service.TicketService) *PublicHandler {
	return &PublicHandler{tickets: tickets}
}

// Get GET /public/damages/:id?token=.
func (h *PublicHandler) Get(c *fiber.Ctx) error {
	info, err := h.tickets.PublicInfo(c.UserContext(), c.Params("id"), c.Query("token"), localeFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": damageDetail(info)})
}
