package v1

import (
	"bytes"
	_ "embed"
	"log/slog"
	"strings"
	"text/template"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sitepulse/internal/config"
)

//go:embed tracker.js
var trackerSource string

var trackerTemplate = template.Must(template.New("tracker.js").Parse(trackerSource))

// trackerBaseURL prefers the configured public URL over the request host
func trackerBaseURL(ctx *cartridge.Context) string {
	if publicURL := config.GetConfig().PublicURL; publicURL != "" {
		return strings.TrimRight(publicURL, "/")
	}
	return ctx.BaseURL()
}

// GetTrackerAction serves the beacon script with the collect endpoint baked in
func GetTrackerAction(ctx *cartridge.Context) error {
	var buf bytes.Buffer
	if err := trackerTemplate.Execute(&buf, map[string]string{"BaseURL": trackerBaseURL(ctx)}); err != nil {
		ctx.Logger.Error("Failed to render tracker script", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
	}

	content := buf.Bytes()
	etag := generateETag(content)

	ctx.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	ctx.Set(fiber.HeaderETag, etag)
	ctx.Set("Cross-Origin-Resource-Policy", "cross-origin")

	if ctx.Get(fiber.HeaderIfNoneMatch) == etag {
		return ctx.Status(fiber.StatusNotModified).Send(nil)
	}

	ctx.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
	return ctx.Send(content)
}
