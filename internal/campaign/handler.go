package campaign

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/httperr"
	"github.com/civicly/civicly/internal/ledger"
)

// Handler exposes campaign HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a campaign HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	IssueID        string `json:"issue_id"`
	OrgID          string `json:"org_id"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	TargetPence    int64  `json:"target_pence"`
	PlatformFeePct *int   `json:"platform_fee_pct"`
	Recipient      string `json:"recipient"`
	RecipientURL   string `json:"recipient_url"`
}

// Create opens a new fundraising campaign for an issue.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	created, err := h.service.Create(c.UserContext(), CreateInput{
		IssueID:        req.IssueID,
		OrgID:          req.OrgID,
		Title:          req.Title,
		Description:    req.Description,
		TargetPence:    req.TargetPence,
		PlatformFeePct: req.PlatformFeePct,
		Recipient:      req.Recipient,
		RecipientURL:   req.RecipientURL,
	})
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(created)
}

// Get returns a single campaign.
func (h *Handler) Get(c *fiber.Ctx) error {
	found, err := h.service.Get(c.UserContext(), c.Params("campaignId"))
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(found)
}

// List returns campaigns filtered by the issue_id and status query parameters.
func (h *Handler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	campaigns, err := h.service.List(c.UserContext(), ledger.CampaignFilter{
		IssueID: c.Query("issue_id"),
		Status:  c.Query("status"),
		Limit:   limit,
	})
	if err != nil {
		return httperr.From(err)
	}
	if campaigns == nil {
		campaigns = []ledger.Campaign{}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"campaigns": campaigns})
}
