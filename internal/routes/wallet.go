package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicly/civicly/internal/contribution"
	"github.com/civicly/civicly/internal/spending"
	"github.com/civicly/civicly/internal/wallet"
)

// RegisterWalletRoutes wires the session wallet endpoints. Money-moving
// routes pass through the idempotency guard when one is configured.
func RegisterWalletRoutes(r sessionRoutes, w *wallet.Handler, contributions *contribution.Handler, spend *spending.Handler, idempotent fiber.Handler) {
	guard := func(h fiber.Handler) []fiber.Handler {
		if idempotent == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{idempotent, h}
	}
	r.Get("/wallet", w.Get)
	r.Get("/wallet/transactions", w.History)
	r.Get("/wallet/summary", spend.Summary)
	r.Post("/wallet/topup", guard(w.TopUp)...)
	r.Post("/wallet/contribute", guard(contributions.Contribute)...)
}

// RegisterPaymentRoutes wires payment provider callbacks.
func RegisterPaymentRoutes(r fiber.Router, w *wallet.Handler, webhookAuth fiber.Handler) {
	r.Post("/payments/topups/:transactionId/complete", webhookAuth, w.CompleteTopup)
}
