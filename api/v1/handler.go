package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sitepulse/internal/config"
	"sitepulse/internal/events"
	"sitepulse/internal/metrics"
	"sitepulse/internal/pkg/geoip"
)

const (
	errInvalidRequestBody = "invalid request body"
	errMethodNotAllowed   = "Method not allowed"
	errRecordFailed       = "failed to record event"
)

// collectOptions builds the enrichment options from the current configuration
func collectOptions(cfg *config.Config) events.Options {
	opts := events.Options{ClassifyUserAgent: cfg.ClassifyUserAgent}
	if geoip.GetGeoDB() != nil {
		opts.LookupCountry = geoip.CountryCode
	}
	return opts
}

// CollectHandler accepts a tracker event. Beacons arrive as text/plain, so the
// raw body is decoded as JSON regardless of Content-Type.
func CollectHandler(ctx *cartridge.Context) error {
	start := time.Now()
	cfg := config.GetConfig()

	var input events.CollectInput
	if err := json.Unmarshal(ctx.Body(), &input); err != nil {
		ctx.Logger.Debug("Failed to decode collect request", slog.Any("error", err))
		metrics.RecordRejected(metrics.ReasonInvalidBody)
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": errInvalidRequestBody})
	}
	input.IPAddress = getClientIP(ctx.Ctx, cfg.TrustProxyHeaders)
	input.HeaderUserAgent = ctx.Get(fiber.HeaderUserAgent)

	result, err := events.Collect(ctx.UserContext(), ctx.DBManager, ctx.Logger, &input, collectOptions(cfg))
	if err != nil {
		return collectError(ctx, err)
	}

	metrics.RecordIngested(string(result.EventType), result.VisitorCreated, time.Since(start))

	if result.EventType == events.EventTypePageView {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"success":    true,
			"visitor_id": result.VisitorID,
		})
	}
	return ctx.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

// collectError maps the ingestion error taxonomy onto HTTP responses.
// Unknown visitors on session_update are acknowledged as success.
func collectError(ctx *cartridge.Context, err error) error {
	var validationErr *events.ValidationError
	var authErr *events.AuthorizationError
	var notFoundErr *events.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		metrics.RecordRejected(metrics.ReasonValidation)
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Message})
	case errors.As(err, &authErr):
		ctx.Logger.Debug("Rejected unknown tracking code", slog.String("tracking_code", authErr.TrackingCode))
		metrics.RecordRejected(metrics.ReasonUnknownTracking)
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{"error": authErr.Error()})
	case errors.As(err, &notFoundErr):
		ctx.Logger.Debug("Ignored session update for unknown visitor", slog.String("visitor_id", notFoundErr.VisitorID))
		metrics.RecordRejected(metrics.ReasonUnknownVisitor)
		return ctx.Status(http.StatusOK).JSON(fiber.Map{"success": true})
	default:
		ctx.Logger.Error("Failed to collect event", slog.Any("error", err))
		metrics.RecordRejected(metrics.ReasonPersistence)
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": errRecordFailed})
	}
}

// CollectPreflightHandler answers CORS preflight requests with an empty 200
func CollectPreflightHandler(ctx *cartridge.Context) error {
	ctx.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	ctx.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	ctx.Set(fiber.HeaderAccessControlAllowHeaders, fiber.HeaderContentType)
	ctx.Set(fiber.HeaderAccessControlMaxAge, "86400")
	return ctx.Status(http.StatusOK).Send(nil)
}

// MethodNotAllowedHandler rejects every method other than POST and OPTIONS
func MethodNotAllowedHandler(ctx *cartridge.Context) error {
	metrics.RecordRejected(metrics.ReasonMethodNotAllowed)
	ctx.Set(fiber.HeaderAllow, "POST, OPTIONS")
	return ctx.Status(http.StatusMethodNotAllowed).JSON(fiber.Map{"error": errMethodNotAllowed})
}
