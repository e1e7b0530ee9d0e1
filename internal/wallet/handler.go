package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/httperr"
	"github.com/civicly/civicly/internal/ledger"
)

// Handler exposes wallet HTTP endpoints for the authenticated user.
type Handler struct {
	manager *Manager
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func currentUser(c *fiber.Ctx) (string, error) {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return uid, nil
}

// Get returns the caller's wallet, creating it on first access.
func (h *Handler) Get(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	w, err := h.manager.GetOrCreateWallet(c.UserContext(), uid)
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(w)
}

type topupRequest struct {
	AmountPence int64 `json:"amount_pence"`
}

type topupResponse struct {
	Transaction ledger.Transaction `json:"transaction"`
	Wallet      ledger.Wallet      `json:"wallet"`
	PaymentURL  string             `json:"payment_url"`
}

// TopUp loads funds through the configured payment gateway.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	var req topupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.manager.TopUp(c.UserContext(), uid, req.AmountPence)
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(topupResponse{
		Transaction: receipt.Transaction,
		Wallet:      receipt.Wallet,
		PaymentURL:  receipt.PaymentURL,
	})
}

// History lists the caller's recent ledger rows.
func (h *Handler) History(c *fiber.Ctx) error {
	uid, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	txs, err := h.manager.History(c.UserContext(), uid, limit)
	if err != nil {
		return httperr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txs})
}

type completeRequest struct {
	Reference string `json:"reference"`
}

// CompleteTopup is the payment provider callback. Redelivery of an already
// completed top-up answers 200 with the current state.
func (h *Handler) CompleteTopup(c *fiber.Ctx) error {
	var req completeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	res, err := h.manager.CompleteTopup(c.UserContext(), c.Params("transactionId"), req.Reference)
	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(fiber.Map{"transaction": res.Transaction, "wallet": res.Wallet, "replayed": false})
	case errors.Is(err, ledger.ErrTopupAlreadyCompleted):
		return c.Status(http.StatusOK).JSON(fiber.Map{"transaction": res.Transaction, "wallet": res.Wallet, "replayed": true})
	default:
		return httperr.From(err)
	}
}
