package middleware

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"sitepulse/internal/auth"
	"sitepulse/internal/websites"
)

const websiteKey = "website"

// WebsiteFrom returns the website loaded by WebsiteScope
func WebsiteFrom(c *fiber.Ctx) (websites.Website, bool) {
	website, ok := c.Locals(websiteKey).(websites.Website)
	return website, ok
}

// WebsiteScope loads the :id website owned by the logged in user.
// Websites owned by someone else are reported as missing.
func WebsiteScope(db *gorm.DB, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}

		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid website id"})
		}

		website, err := websites.GetWebsiteForOwner(db.WithContext(c.UserContext()), uint(id), principal.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Debug("Website not found for owner",
					slog.Uint64("website_id", id),
					slog.Uint64("user_id", uint64(principal.UserID)))
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "website not found"})
			}
			logger.Error("Failed to load website", slog.Any("error", err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load website"})
		}

		c.Locals(websiteKey, website)
		return c.Next()
	}
}
