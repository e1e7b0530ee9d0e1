package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/identity"
	"github.com/civicly/civicly/internal/wallet"
)

// RegisterIdentityRoutes wires identity endpoints and provisions a wallet on registration.
func RegisterIdentityRoutes(r fiber.Router, protected sessionRoutes, ids *identity.Service, wallets *wallet.Manager, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Phone       string `json:"phone"`
			PIN         string `json:"pin"`
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Phone: req.Phone, PIN: req.PIN, DisplayName: req.DisplayName})
		if err != nil {
			if errors.Is(err, identity.ErrUserExists) {
				return fiber.NewError(http.StatusConflict, err.Error())
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		var walletID string
		if w, err := wallets.GetOrCreateWallet(c.UserContext(), user.ID); err == nil {
			walletID = w.ID
		} else {
			logger.Warn("wallet provisioning deferred", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		logger.Info("identity.register completed",
			slog.String("user_id", user.ID),
			slog.String("wallet_id", walletID),
			slog.Int("status", http.StatusCreated),
		)
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":      user.ID,
			"phone":        user.Phone,
			"display_name": user.DisplayName,
			"wallet_id":    walletID,
		})
	})

	protected.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		user, err := ids.Get(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":       user.ID,
			"phone":         user.Phone,
			"display_name":  user.DisplayName,
			"token_version": user.TokenVersion,
			"created_at":    user.CreatedAt,
			"last_login":    user.LastLogin,
		})
	})
}
