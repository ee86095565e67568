package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sitepulse/internal/auth"
)

// AuthHandlers serves login and logout on top of a Verifier and a SessionStore
type AuthHandlers struct {
	Verifier   auth.Verifier
	Sessions   *auth.SessionStore
	CookieName string
	Secure     bool
}

type loginForm struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginStatusAction reports whether the request carries a valid login session
func (h *AuthHandlers) LoginStatusAction(ctx *cartridge.Context) error {
	principal, _, err := h.Sessions.Lookup(ctx.UserContext(), ctx.Cookies(h.CookieName))
	if err != nil {
		if !errors.Is(err, auth.ErrSessionNotFound) {
			ctx.Logger.Error("Failed to resolve login session", slog.Any("error", err))
		}
		return ctx.JSON(fiber.Map{"authenticated": false})
	}
	return ctx.JSON(fiber.Map{
		"authenticated": true,
		"username":      principal.Username,
	})
}

// LoginAction verifies the submitted credentials and opens a session
func (h *AuthHandlers) LoginAction(ctx *cartridge.Context) error {
	form := loginForm{
		Username: ctx.FormValue("username"),
		Password: ctx.FormValue("password"),
	}
	if form.Password == "" {
		var body loginForm
		if err := ctx.BodyParser(&body); err == nil {
			form = body
		}
	}

	principal, err := h.Verifier.Verify(ctx.UserContext(), auth.Credentials{
		Username: form.Username,
		Password: form.Password,
	})
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			ctx.Logger.Error("Login verification failed", slog.Any("error", err))
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "login failed"})
		}
		ctx.Logger.Info("Rejected login attempt", slog.String("ip", ctx.IP()))
		if auth.WantsJSON(ctx.Ctx) {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}
		return ctx.Redirect("/login?error=invalid", fiber.StatusFound)
	}

	token, expiresAt, err := h.Sessions.Create(ctx.UserContext(), principal)
	if err != nil {
		ctx.Logger.Error("Failed to create login session", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "login failed"})
	}

	auth.SetSessionCookie(ctx.Ctx, h.CookieName, token, expiresAt, h.Secure)
	ctx.Logger.Info("User logged in", slog.String("username", principal.Username))
	return ctx.Redirect("/admin/websites", fiber.StatusFound)
}

// LogoutAction revokes the current session and clears the cookie
func (h *AuthHandlers) LogoutAction(ctx *cartridge.Context) error {
	if err := h.Sessions.Revoke(ctx.UserContext(), ctx.Cookies(h.CookieName)); err != nil {
		ctx.Logger.Error("Failed to revoke login session", slog.Any("error", err))
	}
	auth.ClearSessionCookie(ctx.Ctx, h.CookieName, h.Secure)

	if auth.WantsJSON(ctx.Ctx) {
		return ctx.JSON(fiber.Map{"success": true})
	}
	return ctx.Redirect("/login", fiber.StatusFound)
}
