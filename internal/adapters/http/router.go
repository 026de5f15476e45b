package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/huarazguide/internal/pkg/metrics"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	CORSOrigins []string
	// RateLimit is requests per minute per IP; 0 disables limiting.
	RateLimit int
	// ChatTimeout bounds assistant calls, which are slower than the rest.
	ChatTimeout time.Duration
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, opts RouterOptions) {
	if opts.ChatTimeout <= 0 {
		opts.ChatTimeout = 60 * time.Second
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	origins := "*"
	if len(opts.CORSOrigins) > 0 {
		origins = strings.Join(opts.CORSOrigins, ",")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	if opts.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			// Gesture streams are chatty by nature.
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodPost && strings.HasPrefix(c.Path(), "/v1/map/sessions/")
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware(legacyRoutes))
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	const reqTimeout = 15 * time.Second
	v1 := app.Group("/v1")

	// Directory
	v1.Get("/categories", ListCategoriesHandler())
	v1.Get("/businesses", timeout.NewWithContext(ListBusinessesHandler(deps), reqTimeout))
	v1.Post("/businesses", timeout.NewWithContext(SubmitBusinessHandler(deps), reqTimeout))
	v1.Get("/businesses/nearby", timeout.NewWithContext(NearbyBusinessesHandler(deps), reqTimeout))
	v1.Get("/businesses/:id", timeout.NewWithContext(GetBusinessHandler(deps), reqTimeout))
	v1.Get("/businesses/:id/coupons", timeout.NewWithContext(BusinessCouponsHandler(deps), reqTimeout))

	// Legacy aliases (see legacyRoutes)
	v1.Get("/search", timeout.NewWithContext(ListBusinessesHandler(deps), reqTimeout))
	v1.Get("/business/:id", timeout.NewWithContext(GetBusinessHandler(deps), reqTimeout))

	// Coupons
	v1.Get("/coupons", timeout.NewWithContext(ListCouponsHandler(deps), reqTimeout))
	v1.Get("/coupons/:code", timeout.NewWithContext(GetCouponHandler(deps), reqTimeout))
	v1.Get("/coupons/:code/qr.png", timeout.NewWithContext(CouponQRHandler(deps), reqTimeout))

	// Assistant
	v1.Post("/chat", timeout.NewWithContext(ChatHandler(deps), opts.ChatTimeout))

	// Map viewport
	v1.Get("/map/config", timeout.NewWithContext(MapConfigHandler(deps), reqTimeout))
	v1.Post("/map/sessions", timeout.NewWithContext(OpenMapSessionHandler(deps), reqTimeout))
	v1.Get("/map/sessions/:id", MapFrameHandler(deps))
	v1.Post("/map/sessions/:id/events", timeout.NewWithContext(DispatchEventsHandler(deps), reqTimeout))
	v1.Post("/map/sessions/:id/resize", ResizeMapSessionHandler(deps))
	v1.Post("/map/sessions/:id/reset", ResetMapSessionHandler(deps))
	v1.Delete("/map/sessions/:id", CloseMapSessionHandler(deps))

	// Admin (unauthenticated; expected behind the operator's gateway)
	admin := v1.Group("/admin")
	admin.Get("/businesses", timeout.NewWithContext(AdminListBusinessesHandler(deps), reqTimeout))
	admin.Put("/businesses/:id/status", timeout.NewWithContext(SetStatusHandler(deps), reqTimeout))
	admin.Put("/businesses/:id/sponsorship", timeout.NewWithContext(SetSponsorshipHandler(deps), reqTimeout))
	admin.Put("/businesses/:id/location", timeout.NewWithContext(MoveLocationHandler(deps), reqTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.DocsPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/map/:id", websocket.New(MapWebSocketHandler(deps.Maps)))
}
