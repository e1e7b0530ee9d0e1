package contribution

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/httperr"
	"github.com/civicly/civicly/internal/ledger"
)

// Request is the contribution body shared by the web and bot call sites.
type Request struct {
	CampaignID  string `json:"campaign_id"`
	AmountPence int64  `json:"amount_pence"`
}

// Response is the contribution body both call sites return.
type Response struct {
	Transaction        ledger.Transaction `json:"transaction"`
	Campaign           ledger.Campaign    `json:"campaign"`
	WalletBalancePence int64              `json:"wallet_balance_pence"`
}

// ToResponse shapes a result for the wire.
func ToResponse(r Result) Response {
	return Response{Transaction: r.Transaction, Campaign: r.Campaign, WalletBalancePence: r.Wallet.BalancePence}
}

// Handler exposes the session-authenticated contribution endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a contribution HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Contribute spends from the caller's wallet on a campaign.
func (h *Handler) Contribute(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.CampaignID == "" {
		return fiber.NewError(http.StatusBadRequest, "campaign_id is required")
	}
	res, err := h.service.Contribute(c.UserContext(), uid, req.CampaignID, req.AmountPence)
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(ToResponse(res))
}
