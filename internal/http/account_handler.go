package http

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"sitepulse/internal/auth"
	"sitepulse/internal/users"
)

// MinPasswordLength is enforced when an admin changes their password
const MinPasswordLength = 8

type changePasswordForm struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePasswordAction replaces the logged in user's password. Every other
// session of the user is revoked and the caller gets a fresh one.
func (h *AuthHandlers) ChangePasswordAction(ctx *cartridge.Context) error {
	principal, _ := auth.PrincipalFrom(ctx.Ctx)

	form := changePasswordForm{
		CurrentPassword: ctx.FormValue("current_password"),
		NewPassword:     ctx.FormValue("new_password"),
	}
	if form.CurrentPassword == "" && form.NewPassword == "" {
		if err := ctx.BodyParser(&form); err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	switch {
	case strings.TrimSpace(form.CurrentPassword) == "":
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "current password is required"})
	case len(form.NewPassword) < MinPasswordLength:
		return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "new password must be at least 8 characters long"})
	}

	_, err := h.Verifier.Verify(ctx.UserContext(), auth.Credentials{
		Username: principal.Username,
		Password: form.CurrentPassword,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ctx.Logger.Warn("Invalid current password during password change",
				slog.Uint64("user_id", uint64(principal.UserID)))
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "current password is incorrect"})
		}
		ctx.Logger.Error("Failed to verify current password", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to change password"})
	}

	if err := users.ChangePassword(ctx.DB(), principal.Username, form.NewPassword); err != nil {
		ctx.Logger.Error("Failed to change password", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to change password"})
	}

	if err := h.Sessions.RevokeAllForUser(ctx.UserContext(), principal.UserID); err != nil {
		ctx.Logger.Error("Failed to revoke sessions after password change", slog.Any("error", err))
	}
	token, expiresAt, err := h.Sessions.Create(ctx.UserContext(), principal)
	if err != nil {
		ctx.Logger.Error("Failed to reopen session after password change", slog.Any("error", err))
		auth.ClearSessionCookie(ctx.Ctx, h.CookieName, h.Secure)
		return ctx.JSON(fiber.Map{"success": true})
	}
	auth.SetSessionCookie(ctx.Ctx, h.CookieName, token, expiresAt, h.Secure)

	ctx.Logger.Info("Password changed", slog.Uint64("user_id", uint64(principal.UserID)))
	return ctx.JSON(fiber.Map{"success": true})
}
