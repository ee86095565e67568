package auth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const principalKey = "auth.principal"

// SetSessionCookie writes the login cookie
func SetSessionCookie(c *fiber.Ctx, name, token string, expiresAt time.Time, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		Secure:   secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// ClearSessionCookie expires the login cookie
func ClearSessionCookie(c *fiber.Ctx, name string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-24 * time.Hour),
		Secure:   secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// PrincipalFrom returns the principal attached by RequireLogin
func PrincipalFrom(c *fiber.Ctx) (*Principal, bool) {
	p, ok := c.Locals(principalKey).(*Principal)
	return p, ok && p != nil
}

// WantsJSON reports whether the client asked for a JSON response
func WantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) ||
		strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}

// RequireLogin rejects requests without a valid session cookie.
// Browsers are redirected to /login, JSON clients get 401.
func RequireLogin(store *SessionStore, cookieName string, secure bool, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		principal, expiresAt, err := store.Lookup(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				logger.Error("Failed to resolve login session", slog.Any("error", err))
			}
			if token != "" {
				ClearSessionCookie(c, cookieName, secure)
			}
			if WantsJSON(c) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
			}
			return c.Redirect("/login", fiber.StatusFound)
		}

		SetSessionCookie(c, cookieName, token, expiresAt, secure)
		c.Locals(principalKey, principal)
		return c.Next()
	}
}
