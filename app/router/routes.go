// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/handlers"
	"github.com/amirphl/segment-backoffice/app/middleware"
	"github.com/amirphl/segment-backoffice/config"
	_ "github.com/amirphl/segment-backoffice/docs"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/swaggo/swag"
	"gorm.io/gorm"
)

const healthPath = "/api/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers groups the endpoint handlers mounted under /api
type Handlers struct {
	Tags     handlers.TagHandlerInterface
	Segments handlers.SegmentHandlerInterface
	Users    handlers.UserHandlerInterface
	Audit    handlers.AuditHandlerInterface
}

// Dependencies are the optional backing services reported by the health probe.
// AccessLog defaults to stdout.
type Dependencies struct {
	Redis     *redis.Client
	DB        *gorm.DB
	AccessLog io.Writer
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	cfg      *config.ProductionConfig
	handlers Handlers
	auth     *middleware.AuthMiddleware
	deps     Dependencies
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg *config.ProductionConfig, h Handlers, auth *middleware.AuthMiddleware, deps Dependencies) Router {
	if deps.AccessLog == nil {
		deps.AccessLog = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:      "Segment Backoffice API",
		ServerHeader: "segment-backoffice",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	return &FiberRouter{
		app:      app,
		cfg:      cfg,
		handlers: h,
		auth:     auth,
		deps:     deps,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api")

	// Health check route (no auth, no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.cfg.IsDevelopment() || r.cfg.Server.EnableSwagger {
		api.Get("/swagger.json", r.serveSwaggerJSON)
		log.Println("API documentation enabled")
	}

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, nil))

	// Writes are sent straight to the segmentation backend; keep them slower
	writeLimiter := r.rateLimiter(r.cfg.Security.WriteRateLimit, func(c fiber.Ctx) bool {
		return c.Method() != fiber.MethodPost && c.Method() != fiber.MethodDelete
	})

	protected := api.Group("", r.auth.Authenticate(), writeLimiter)

	tags := protected.Group("/tags")
	tags.Get("/", r.handlers.Tags.ListTags)
	tags.Get("/template", r.handlers.Tags.Template)
	tags.Get("/:id/edit-state", r.handlers.Tags.EditState)
	tags.Post("/preview", r.handlers.Tags.Preview)
	tags.Post("/validate", r.handlers.Tags.Validate)
	tags.Post("/create", r.handlers.Tags.CreateTag)
	tags.Post("/update", r.handlers.Tags.UpdateTag)
	tags.Post("/delete", r.handlers.Tags.DeleteTag)

	drafts := tags.Group("/drafts")
	drafts.Post("/", r.handlers.Tags.CreateDraft)
	drafts.Get("/:key", r.handlers.Tags.GetDraft)
	drafts.Post("/:key/ops", r.handlers.Tags.ApplyDraftOp)
	drafts.Delete("/:key", r.handlers.Tags.DeleteDraft)

	users := protected.Group("/users")
	users.Get("/", r.handlers.Users.ListUsers)
	users.Get("/:id/timeline", r.handlers.Users.Timeline)
	users.Get("/:id/timeline/export", r.handlers.Users.ExportTimeline)

	segments := protected.Group("/segments")
	segments.Get("/", r.handlers.Segments.ListSegments)
	segments.Post("/setup", r.handlers.Segments.SetupSegments)
	segments.Get("/statistics", r.handlers.Segments.Statistics)

	protected.Get("/audit", r.handlers.Audit.ListAudit)
	protected.Get("/audit/:id", r.handlers.Audit.GetAudit)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: fiber.HeaderXRequestID,
		Generator: func() string {
			return generateRequestID()
		},
	}))

	sec := r.cfg.Security
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        sec.XContentTypeOptions,
		XFrameOptions:             sec.XFrameOptions,
		HSTSMaxAge:                31536000, // 1 year
		ContentSecurityPolicy:     sec.CSPPolicy,
		ReferrerPolicy:            sec.ReferrerPolicy,
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	maxAge := sec.CORSMaxAge
	if maxAge <= 0 {
		maxAge = utils.CORSMaxAge
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     sec.AllowedOrigins,
		AllowMethods:     sec.AllowedMethods,
		AllowHeaders:     sec.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, fiber.HeaderContentDisposition},
		AllowCredentials: sec.AllowCredentials,
		MaxAge:           maxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.Level(r.cfg.Server.CompressionLevel),
			Next: func(c fiber.Ctx) bool {
				// xlsx is already a zip archive
				return strings.HasSuffix(c.Path(), "/timeline/export")
			},
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Stream:     r.deps.AccessLog,
			Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == healthPath || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	r.app.Use(r.securityMiddleware)

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			if c.Path() == healthPath {
				return true
			}
			return next != nil && next(c)
		},
	})
}

// securityMiddleware keeps operator data out of shared caches
func (r *FiberRouter) securityMiddleware(c fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), "/api/") && c.Path() != healthPath {
		c.Set(fiber.HeaderCacheControl, "no-store")
	}
	return c.Next()
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: !r.cfg.IsDevelopment()})
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// healthCheck reports the state of the optional cache and database. A
// configured dependency that does not answer makes the probe fail.
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := dto.HealthResponse{
		Status:      "ok",
		Version:     r.cfg.Deployment.Version,
		Environment: r.cfg.Deployment.Environment,
		Cache:       "disabled",
		Database:    "disabled",
		Timestamp:   utils.UTCNow().Format(time.RFC3339),
	}

	if r.deps.Redis != nil {
		res.Cache = "ok"
		if err := r.deps.Redis.Ping(ctx).Err(); err != nil {
			log.Printf("Health check: redis ping failed: %v", err)
			res.Cache = "down"
			res.Status = "degraded"
		}
	}

	if r.deps.DB != nil {
		res.Database = "ok"
		if err := pingDB(ctx, r.deps.DB); err != nil {
			log.Printf("Health check: database ping failed: %v", err)
			res.Database = "down"
			res.Status = "degraded"
		}
	}

	if res.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.APIResponse{
			Success: false,
			Message: "Service is degraded",
			Data:    res,
			Error:   dto.ErrorDetail{Code: "SERVICE_DEGRADED"},
		})
	}
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data:    res,
	})
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// serveSwaggerJSON serves the document registered by the docs package
func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		log.Printf("Failed to read swagger doc: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "API documentation is not available",
			Error:   dto.ErrorDetail{Code: "SWAGGER_NOT_AVAILABLE"},
		})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(doc)
}

// notFoundHandler answers unmatched routes with the standard envelope
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "Endpoint not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler is the global fallback for errors handlers did not answer
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	errorCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
		if code != fiber.StatusInternalServerError {
			errorCode = strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_"))
		}
	}

	log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"unhandled_error","error":"%v","path":"%s","method":"%s","status":%d}`,
		utils.UTCNow().Format(time.RFC3339),
		requestid.FromContext(c),
		err,
		c.Path(),
		c.Method(),
		code,
	)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
