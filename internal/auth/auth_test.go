package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/auth"
	"sitepulse/internal/testsupport"
)

func TestUserVerifier(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	user := testsupport.CreateTestUser(t, db, "admin", "correct-horse")

	var verifier auth.Verifier = auth.NewUserVerifier(db, logger)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		principal, err := verifier.Verify(ctx, auth.Credentials{Username: "Admin", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, user.ID, principal.UserID)
		assert.Equal(t, "admin", principal.Username)
	})

	t.Run("empty username falls back to admin", func(t *testing.T) {
		_, err := verifier.Verify(ctx, auth.Credentials{Password: "correct-horse"})
		assert.NoError(t, err)
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		_, wrongPassword := verifier.Verify(ctx, auth.Credentials{Username: "admin", Password: "nope"})
		_, unknownUser := verifier.Verify(ctx, auth.Credentials{Username: "ghost", Password: "nope"})
		_, emptyPassword := verifier.Verify(ctx, auth.Credentials{Username: "admin"})

		assert.ErrorIs(t, wrongPassword, auth.ErrInvalidCredentials)
		assert.ErrorIs(t, unknownUser, auth.ErrInvalidCredentials)
		assert.ErrorIs(t, emptyPassword, auth.ErrInvalidCredentials)
	})
}

func TestSessionStore(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	user := testsupport.CreateTestUser(t, db, "admin", "password")
	principal := &auth.Principal{UserID: user.ID, Username: user.Username}
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		store := auth.NewSessionStore(db, logger, time.Hour)
		token, expiresAt, err := store.Create(ctx, principal)
		require.NoError(t, err)
		assert.Len(t, token, 64)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

		found, _, err := store.Lookup(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.UserID)
		assert.Equal(t, "admin", found.Username)

		var stored auth.LoginSession
		require.NoError(t, db.Where("user_id = ?", user.ID).First(&stored).Error)
		assert.NotEqual(t, token, stored.TokenHash, "raw token is never stored")
	})

	t.Run("unknown and empty tokens", func(t *testing.T) {
		store := auth.NewSessionStore(db, logger, time.Hour)
		_, _, err := store.Lookup(ctx, "")
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
		_, _, err = store.Lookup(ctx, "deadbeef")
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	})

	t.Run("expiry slides on use", func(t *testing.T) {
		now := time.Now().UTC()
		store := auth.NewSessionStore(db, logger, time.Hour).WithClock(func() time.Time { return now })
		token, firstExpiry, err := store.Create(ctx, principal)
		require.NoError(t, err)

		now = now.Add(50 * time.Minute)
		_, slid, err := store.Lookup(ctx, token)
		require.NoError(t, err)
		assert.True(t, slid.After(firstExpiry))

		now = now.Add(50 * time.Minute)
		_, _, err = store.Lookup(ctx, token)
		assert.NoError(t, err, "session extended by previous use")

		now = now.Add(2 * time.Hour)
		_, _, err = store.Lookup(ctx, token)
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	})

	t.Run("revoke", func(t *testing.T) {
		store := auth.NewSessionStore(db, logger, time.Hour)
		token, _, err := store.Create(ctx, principal)
		require.NoError(t, err)

		require.NoError(t, store.Revoke(ctx, token))
		_, _, err = store.Lookup(ctx, token)
		assert.ErrorIs(t, err, auth.ErrSessionNotFound)
		assert.NoError(t, store.Revoke(ctx, ""))
	})

	t.Run("revoke all and purge", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		user = testsupport.CreateTestUser(t, db, "admin", "password")
		principal = &auth.Principal{UserID: user.ID, Username: user.Username}

		expired := auth.NewSessionStore(db, logger, -time.Minute)
		_, _, err := expired.Create(ctx, principal)
		require.NoError(t, err)

		live := auth.NewSessionStore(db, logger, time.Hour)
		token, _, err := live.Create(ctx, principal)
		require.NoError(t, err)

		deleted, err := live.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, _, err = live.Lookup(ctx, token)
		require.NoError(t, err)

		require.NoError(t, live.RevokeAllForUser(ctx, user.ID))
		assert.Equal(t, int64(0), testsupport.CountRows(t, db, "login_sessions"))
	})
}

func TestRequireLogin(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	user := testsupport.CreateTestUser(t, db, "admin", "password")
	store := auth.NewSessionStore(db, logger, time.Hour)

	app := fiber.New()
	app.Get("/private", auth.RequireLogin(store, "sp_session", false, logger), func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(principal.Username)
	})

	token, _, err := store.Create(context.Background(), &auth.Principal{UserID: user.ID, Username: user.Username})
	require.NoError(t, err)

	t.Run("valid cookie passes", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/private", nil)
		req.Header.Set("Cookie", "sp_session="+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("browser without cookie is redirected", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/private", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("json client gets 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/private", nil)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cookie", "sp_session=forged")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
