package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "sitepulse/api/v1"
	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/http"
	"sitepulse/internal/http/middleware"
)

// publicCORSConfig lets any site that embeds the tracker post events
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Content-Type",
}

// defaultCollectRateLimit applies when the config leaves the limit unset
const defaultCollectRateLimit = 120

// NewAuthHandlers wires the login handlers to the server database
func NewAuthHandlers(srv *cartridge.Server) *http.AuthHandlers {
	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	return &http.AuthHandlers{
		Verifier:   auth.NewUserVerifier(db, logger),
		Sessions:   auth.NewSessionStore(db, logger, time.Duration(cfg.GetLoginSessionTimeout())*time.Second),
		CookieName: cfg.SessionCookieName(),
		Secure:     cfg.IsProduction(),
	}
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()
	authHandlers := NewAuthHandlers(srv)

	// Rate limits only apply in production so tests and local runs are not throttled
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	collectLimit := cfg.CollectRateLimit
	if collectLimit <= 0 {
		collectLimit = defaultCollectRateLimit
	}
	collectRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(collectLimit),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Admin forms must come from our own pages
	sameSiteOnly := cartridgemiddleware.SecFetchSiteMiddleware(cartridgemiddleware.SecFetchSiteConfig{
		AllowedValues: []string{"same-origin", "same-site", "none"},
		Methods:       []string{"POST"},
	})

	// Beacons come from arbitrary sites and from non-browser clients
	collectConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		CustomMiddleware:   []fiber.Handler{collectRateLimiter},
		EnableSecFetchSite: cartridge.Bool(false),
	}

	trackerConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	loginConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter, sameSiteOnly},
	}

	requireLogin := auth.RequireLogin(authHandlers.Sessions, authHandlers.CookieName, authHandlers.Secure, logger)

	adminConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{sameSiteOnly, requireLogin},
	}

	websiteConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{sameSiteOnly, requireLogin, middleware.WebsiteScope(db, logger)},
	}

	// === OPERATIONS ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)
	srv.Get("/metrics", http.MetricsAction)

	// === PUBLIC INGESTION ===
	srv.Post("/api/collect", v1.CollectHandler, collectConfig)
	srv.Options("/api/collect", v1.CollectPreflightHandler, &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	})
	methodNotAllowed := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}
	srv.Get("/api/collect", v1.MethodNotAllowedHandler, methodNotAllowed)
	srv.Head("/api/collect", v1.MethodNotAllowedHandler, methodNotAllowed)
	srv.Put("/api/collect", v1.MethodNotAllowedHandler, methodNotAllowed)
	srv.Patch("/api/collect", v1.MethodNotAllowedHandler, methodNotAllowed)
	srv.Delete("/api/collect", v1.MethodNotAllowedHandler, methodNotAllowed)

	srv.Get("/tracker.js", v1.GetTrackerAction, trackerConfig)

	// === AUTHENTICATION ===
	srv.Get("/login", authHandlers.LoginStatusAction)
	srv.Post("/login", authHandlers.LoginAction, loginConfig)
	srv.Post("/logout", authHandlers.LogoutAction, &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{sameSiteOnly},
	})

	// === ADMIN ===
	srv.Get("/admin/websites", http.WebsitesIndexAction, adminConfig)
	srv.Post("/admin/websites", http.WebsiteCreateAction, adminConfig)
	srv.Get("/admin/websites/:id", http.WebsiteShowAction, websiteConfig)
	srv.Get("/admin/websites/:id/stats", http.WebsiteStatsAction, websiteConfig)
	srv.Post("/admin/account/password", authHandlers.ChangePasswordAction, adminConfig)
}
