package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/contribution"
	"github.com/civicly/civicly/internal/httperr"
	"github.com/civicly/civicly/internal/identity"
	"github.com/civicly/civicly/internal/spending"
	"github.com/civicly/civicly/internal/wallet"
)

const (
	ActionBalance    = "balance"
	ActionTopup      = "topup"
	ActionContribute = "contribute"
	ActionSummary    = "summary"
)

// Directory resolves the user behind a bot conversation.
type Directory interface {
	ByPhone(ctx context.Context, phone string) (identity.User, error)
}

// Handler serves the messaging bot's action endpoint. Every action runs the
// same services as the web session endpoints.
type Handler struct {
	users         Directory
	wallets       *wallet.Manager
	contributions *contribution.Service
	spending      *spending.Service
	logger        *slog.Logger
}

// NewHandler builds the bot action handler.
func NewHandler(users Directory, wallets *wallet.Manager, contributions *contribution.Service, spend *spending.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{users: users, wallets: wallets, contributions: contributions, spending: spend, logger: logger}
}

type actionRequest struct {
	Action      string `json:"action"`
	Phone       string `json:"phone"`
	CampaignID  string `json:"campaign_id"`
	AmountPence int64  `json:"amount_pence"`
}

// Action dispatches one bot action for the user owning the phone number.
func (h *Handler) Action(c *fiber.Ctx) error {
	var req actionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if strings.TrimSpace(req.Phone) == "" {
		return fiber.NewError(http.StatusBadRequest, "phone is required")
	}

	ctx := c.UserContext()
	user, err := h.users.ByPhone(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return fiber.NewError(http.StatusNotFound, "no account is registered for this phone number")
		}
		h.logger.Error("bot user lookup failed", slog.Any("error", err))
		return fiber.NewError(http.StatusServiceUnavailable, "user lookup failed")
	}
	log := h.logger.With(slog.String("action", action), slog.String("user_id", user.ID))

	switch action {
	case ActionBalance:
		w, err := h.wallets.GetOrCreateWallet(ctx, user.ID)
		if err != nil {
			return h.fail(log, err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"wallet":  w,
			"message": fmt.Sprintf("Your balance is %s", wallet.FormatPence(w.BalancePence)),
		})

	case ActionTopup:
		receipt, err := h.wallets.TopUp(ctx, user.ID, req.AmountPence)
		if err != nil {
			return h.fail(log, err)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"transaction": receipt.Transaction,
			"wallet":      receipt.Wallet,
			"message": fmt.Sprintf("Added %s. Your balance is %s",
				wallet.FormatPence(req.AmountPence), wallet.FormatPence(receipt.Wallet.BalancePence)),
		})

	case ActionContribute:
		if req.CampaignID == "" {
			return fiber.NewError(http.StatusBadRequest, "campaign_id is required")
		}
		res, err := h.contributions.Contribute(ctx, user.ID, req.CampaignID, req.AmountPence)
		if err != nil {
			return h.fail(log, err)
		}
		return c.Status(http.StatusOK).JSON(contribution.ToResponse(res))

	case ActionSummary:
		sum, err := h.spending.UserSummary(ctx, user.ID)
		if err != nil {
			return h.fail(log, err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"summary": sum,
			"message": fmt.Sprintf("You have given %s across %d issues", wallet.FormatPence(sum.TotalSpentPence), sum.IssuesSupported),
		})

	default:
		return fiber.NewError(http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (h *Handler) fail(log *slog.Logger, err error) error {
	if httperr.Status(err) >= http.StatusInternalServerError {
		log.Error("bot action failed", slog.Any("error", err))
	}
	return httperr.From(err)
}
