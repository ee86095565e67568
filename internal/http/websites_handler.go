package http

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sitepulse/internal/analytics"
	"sitepulse/internal/auth"
	"sitepulse/internal/config"
	"sitepulse/internal/http/middleware"
	"sitepulse/internal/pkg/validation"
	"sitepulse/internal/websites"
)

// WebsiteResponse is a website together with its embed snippet
type WebsiteResponse struct {
	websites.Website
	Snippet string `json:"snippet"`
}

// publicBaseURL is where browsers reach this server
func publicBaseURL(ctx *cartridge.Context) string {
	if url := config.GetConfig().PublicURL; url != "" {
		return url
	}
	return ctx.BaseURL()
}

func newWebsiteResponse(ctx *cartridge.Context, website websites.Website) WebsiteResponse {
	return WebsiteResponse{Website: website, Snippet: website.Snippet(publicBaseURL(ctx))}
}

// WebsitesIndexAction lists the websites owned by the logged in user
func WebsitesIndexAction(ctx *cartridge.Context) error {
	principal, _ := auth.PrincipalFrom(ctx.Ctx)

	list, err := websites.GetWebsitesForOwner(ctx.DB(), principal.UserID)
	if err != nil {
		ctx.Logger.Error("Failed to list websites", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load websites"})
	}

	items := make([]WebsiteResponse, 0, len(list))
	for _, website := range list {
		items = append(items, newWebsiteResponse(ctx, website))
	}
	return ctx.JSON(fiber.Map{"websites": items})
}

// WebsiteCreateAction registers a website and returns its tracking snippet
func WebsiteCreateAction(ctx *cartridge.Context) error {
	principal, _ := auth.PrincipalFrom(ctx.Ctx)

	input := websites.CreateWebsiteInput{
		URL:  ctx.FormValue("url"),
		Name: ctx.FormValue("name"),
	}
	if input.URL == "" && input.Name == "" {
		if err := ctx.BodyParser(&input); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	input.UserID = principal.UserID

	website, err := websites.CreateWebsite(ctx.DB(), ctx.Logger, input)
	if err != nil {
		var fieldErr *validation.FieldError
		if errors.As(err, &fieldErr) {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": fieldErr.Error()})
		}
		ctx.Logger.Error("Failed to create website", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create website"})
	}

	if !auth.WantsJSON(ctx.Ctx) {
		return ctx.Redirect("/admin/websites/"+strconv.FormatUint(uint64(website.ID), 10), fiber.StatusFound)
	}
	return ctx.Status(fiber.StatusCreated).JSON(newWebsiteResponse(ctx, *website))
}

// WebsiteShowAction returns one website with its snippet
func WebsiteShowAction(ctx *cartridge.Context) error {
	website, _ := middleware.WebsiteFrom(ctx.Ctx)
	return ctx.JSON(newWebsiteResponse(ctx, website))
}

// WebsiteStatsAction builds the traffic report for start_date..end_date
func WebsiteStatsAction(ctx *cartridge.Context) error {
	website, _ := middleware.WebsiteFrom(ctx.Ctx)

	dateRange, err := analytics.ParseDateRange(ctx.Query("start_date"), ctx.Query("end_date"), time.Now().UTC())
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := analytics.BuildReport(ctx.UserContext(), ctx.DB(), ctx.Logger,
		analytics.NewWebsiteScopedQueryParams(website.ID, dateRange))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to build report"})
	}
	return ctx.JSON(report)
}
