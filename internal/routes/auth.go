package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. Logout needs a session.
func RegisterAuthRoutes(r fiber.Router, protected sessionRoutes, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/refresh", h.Refresh)
	protected.Post("/auth/logout", h.Logout)
}
