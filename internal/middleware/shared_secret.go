package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// BotTokenHeader carries the messaging bot's API token.
	BotTokenHeader = "X-Bot-Token"
	// WebhookSecretHeader carries the payment provider's shared secret.
	WebhookSecretHeader = "X-Webhook-Secret"
)

// BotAuth admits requests presenting the bot API token either in
// X-Bot-Token or as a bearer token. An empty configured token rejects all.
func BotAuth(token string) fiber.Handler {
	return sharedSecret(token, func(c *fiber.Ctx) string {
		if v := c.Get(BotTokenHeader); v != "" {
			return v
		}
		authz := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return strings.TrimSpace(authz[len("Bearer "):])
		}
		return ""
	})
}

// WebhookAuth admits payment callbacks carrying the configured secret.
func WebhookAuth(secret string) fiber.Handler {
	return sharedSecret(secret, func(c *fiber.Ctx) string {
		return c.Get(WebhookSecretHeader)
	})
}

func sharedSecret(expected string, extract func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := extract(c)
		if expected == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		return c.Next()
	}
}
