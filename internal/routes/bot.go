package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/bot"
)

// RegisterBotRoutes wires the messaging bot's action endpoint.
func RegisterBotRoutes(r fiber.Router, h *bot.Handler, botAuth fiber.Handler) {
	r.Post("/bot/actions", botAuth, h.Action)
}
