package spending

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/httperr"
)

// Handler exposes the spending summary endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a spending summary handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Summary returns the caller's spending summary.
func (h *Handler) Summary(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	sum, err := h.service.UserSummary(c.UserContext(), uid)
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(sum)
}
