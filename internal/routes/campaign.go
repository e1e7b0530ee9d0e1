package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/campaign"
)

// RegisterCampaignRoutes exposes campaigns publicly and creation to sessions.
func RegisterCampaignRoutes(public fiber.Router, protected sessionRoutes, h *campaign.Handler) {
	public.Get("/campaigns", h.List)
	public.Get("/campaigns/:campaignId", h.Get)
	protected.Post("/campaigns", h.Create)
}
