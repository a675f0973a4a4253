package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/a-ayari03/POOL-AI/internal/pkg/metrics"
)

// Per-route deadlines. Reads are served from postgres/valkey; the rest wait
// on the static-map API, the cadastre portal or the filesystem.
const (
	readTimeout    = 15 * time.Second
	pictureTimeout = 45 * time.Second
	splitTimeout   = 2 * time.Minute
	longTimeout    = 5 * time.Minute
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	v1.Post("/pictures", timeout.NewWithContext(AcquirePictureHandler(deps), pictureTimeout))
	v1.Post("/pictures/batch", timeout.NewWithContext(AcquireBatchHandler(deps), longTimeout))
	v1.Get("/pictures", timeout.NewWithContext(ListPicturesHandler(deps), readTimeout))

	v1.Get("/parcels", timeout.NewWithContext(ListParcelsHandler(deps), readTimeout))
	v1.Get("/parcels/:id", timeout.NewWithContext(GetParcelHandler(deps), readTimeout))
	v1.Post("/parcels/:id/picture", timeout.NewWithContext(ParcelPictureHandler(deps), pictureTimeout))

	v1.Post("/datasets/split", timeout.NewWithContext(SplitDatasetHandler(deps), splitTimeout))
	v1.Get("/datasets/preview", timeout.NewWithContext(PreviewSplitHandler(deps), readTimeout))
	v1.Get("/datasets/partition", PartitionHandler(deps))

	v1.Post("/cadastre/imports", timeout.NewWithContext(ImportCadastreHandler(deps), longTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.Settings.OpenAPIPath)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
