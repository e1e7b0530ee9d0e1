package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/civicly/civicly/internal/auth"
	"github.com/civicly/civicly/internal/bot"
	"github.com/civicly/civicly/internal/campaign"
	"github.com/civicly/civicly/internal/config"
	"github.com/civicly/civicly/internal/contribution"
	"github.com/civicly/civicly/internal/identity"
	"github.com/civicly/civicly/internal/ledger"
	"github.com/civicly/civicly/internal/logging"
	"github.com/civicly/civicly/internal/metrics"
	"github.com/civicly/civicly/internal/middleware"
	"github.com/civicly/civicly/internal/notification"
	"github.com/civicly/civicly/internal/payments"
	"github.com/civicly/civicly/internal/spending"
	"github.com/civicly/civicly/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(logging.Component(d.Logger, "http")))
	app.Use(middleware.Deadline(d.Cfg.StoreTimeout))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	var (
		store        ledger.Store
		identityRepo identity.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("no database configured, using in-memory ledger")
		store = ledger.NewInMemory()
		identityRepo = identity.NewMemoryRepository()
	}

	notifier := notification.NewLoggerNotifier(logging.Component(d.Logger, "notification"))
	gateway := payments.SimulatedGateway{BaseURL: d.Cfg.PublicBaseURL}

	identitySvc := identity.NewService(identityRepo)
	walletMgr := wallet.NewManager(store, identitySvc, gateway, notifier, logging.Component(d.Logger, "wallet"))
	campaignSvc := campaign.NewService(store, logging.Component(d.Logger, "campaign"))
	contributionSvc := contribution.NewService(store, notifier, logging.Component(d.Logger, "contribution"))
	spendingSvc := spending.NewService(store)
	authSvc := auth.NewService(d.Cfg, identityRepo)

	walletHandler := wallet.NewHandler(walletMgr)
	campaignHandler := campaign.NewHandler(campaignSvc)
	contributionHandler := contribution.NewHandler(contributionSvc)
	spendingHandler := spending.NewHandler(spendingSvc)
	authHandler := auth.NewHandler(identitySvc, authSvc, walletMgr)
	botHandler := bot.NewHandler(identitySvc, walletMgr, contributionSvc, spendingSvc, logging.Component(d.Logger, "bot"))

	var idempotent fiber.Handler
	if d.Cache != nil {
		idempotent = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID := middleware.GetRequestID(c)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	session := newSessionRoutes(api, middleware.JWTAuth(authSvc))

	RegisterIdentityRoutes(api, session, identitySvc, walletMgr, d.Logger)
	RegisterAuthRoutes(api, session, authHandler, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit))
	RegisterWalletRoutes(session, walletHandler, contributionHandler, spendingHandler, idempotent)
	RegisterCampaignRoutes(api, session, campaignHandler)
	RegisterBotRoutes(api, botHandler, middleware.BotAuth(d.Cfg.BotAPIToken))
	RegisterPaymentRoutes(api, walletHandler, middleware.WebhookAuth(d.Cfg.PaymentWebhookSecret))

	return nil
}
