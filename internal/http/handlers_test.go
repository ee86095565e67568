package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"sitepulse/internal/testsupport"
)

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), "body: %s", string(body))
	return out
}

func do(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	return resp
}

func setup(t *testing.T) (*gorm.DB, *fiber.App) {
	t.Helper()
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	return db, testsupport.CreateTestApp(t, db)
}

func TestHealthIndexAction(t *testing.T) {
	_, app := setup(t)

	resp := do(t, app, httptest.NewRequest("GET", "/_health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db_status"])
}

func TestMetricsAction(t *testing.T) {
	db, app := setup(t)
	user := testsupport.CreateTestUser(t, db, "admin", "password")
	testsupport.CreateTestWebsite(t, db, user.ID, "abc")

	resp := do(t, app, testsupport.NewCollectRequest(`{"tracking_code":"abc","event_type":"pageview","page_url":"/"}`))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = do(t, app, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sitepulse_events_ingested_total{event_type="pageview"}`)
}

func TestLogin(t *testing.T) {
	db, app := setup(t)
	testsupport.CreateTestUser(t, db, "admin", "correct-horse")

	t.Run("status without session", func(t *testing.T) {
		resp := do(t, app, httptest.NewRequest("GET", "/login", nil))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, false, decode(t, resp)["authenticated"])
	})

	t.Run("successful login", func(t *testing.T) {
		session := testsupport.LoginTestUser(t, app, "admin", "correct-horse")

		resp := do(t, app, session.NewRequest("GET", "/login", nil))
		body := decode(t, resp)
		assert.Equal(t, true, body["authenticated"])
		assert.Equal(t, "admin", body["username"])
	})

	t.Run("password only logs in the default admin", func(t *testing.T) {
		session := testsupport.LoginTestUser(t, app, "", "correct-horse")
		assert.NotEmpty(t, session.SessionCookie)
	})

	t.Run("login requires same-site fetch metadata", func(t *testing.T) {
		crossSite := testsupport.NewLoginRequest("admin", "correct-horse")
		crossSite.Header.Set("Sec-Fetch-Site", "cross-site")
		resp := do(t, app, crossSite)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

		bare := testsupport.NewLoginRequest("admin", "correct-horse")
		bare.Header.Del("Sec-Fetch-Site")
		resp = do(t, app, bare)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("json client with wrong password gets 401", func(t *testing.T) {
		req := testsupport.NewLoginRequest("admin", "nope")
		req.Header.Set("Accept", "application/json")
		resp := do(t, app, req)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid credentials", decode(t, resp)["error"])
	})

	t.Run("unknown user gets the same answer", func(t *testing.T) {
		req := testsupport.NewLoginRequest("ghost", "correct-horse")
		req.Header.Set("Accept", "application/json")
		resp := do(t, app, req)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid credentials", decode(t, resp)["error"])
	})

	t.Run("browser with wrong password is sent back", func(t *testing.T) {
		req := testsupport.NewLoginRequest("admin", "nope")
		resp := do(t, app, req)
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login?error=invalid", resp.Header.Get("Location"))
		for _, cookie := range resp.Cookies() {
			assert.NotEqual(t, testsupport.SessionCookieName, cookie.Name)
		}
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		session := testsupport.LoginTestUser(t, app, "admin", "correct-horse")

		resp := do(t, app, session.NewRequest("POST", "/logout", url.Values{}))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp = do(t, app, session.NewRequest("GET", "/admin/websites", nil))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAdminRequiresLogin(t *testing.T) {
	_, app := setup(t)

	t.Run("browser is redirected", func(t *testing.T) {
		resp := do(t, app, httptest.NewRequest("GET", "/admin/websites", nil))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("json client gets 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/websites", nil)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cookie", testsupport.SessionCookieName+"=forged")
		resp := do(t, app, req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestWebsites(t *testing.T) {
	db, app := setup(t)
	testsupport.CreateTestUser(t, db, "admin", "password")
	other := testsupport.CreateTestUser(t, db, "someone", "password")
	foreign := testsupport.CreateTestWebsite(t, db, other.ID, "foreign")

	session := testsupport.LoginTestUser(t, app, "admin", "password")

	var created map[string]any
	t.Run("create", func(t *testing.T) {
		resp := do(t, app, session.NewRequest("POST", "/admin/websites", url.Values{
			"url":  {"https://blog.example.com/"},
			"name": {"Blog"},
		}))
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		created = decode(t, resp)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), created["tracking_code"])
		assert.Equal(t, "https://blog.example.com", created["url"])
		assert.Contains(t, created["snippet"], "/tracker.js?code="+created["tracking_code"].(string))
	})

	t.Run("create validates input", func(t *testing.T) {
		resp := do(t, app, session.NewRequest("POST", "/admin/websites", url.Values{"url": {"not a url"}, "name": {"x"}}))
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "url must be a valid URL", decode(t, resp)["error"])

		resp = do(t, app, session.NewRequest("POST", "/admin/websites", url.Values{"url": {"https://a.example.com"}}))
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "name is required", decode(t, resp)["error"])
	})

	t.Run("index lists only owned websites", func(t *testing.T) {
		resp := do(t, app, session.NewRequest("GET", "/admin/websites", nil))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		list := decode(t, resp)["websites"].([]any)
		require.Len(t, list, 1)
		assert.Equal(t, "Blog", list[0].(map[string]any)["name"])
	})

	t.Run("show", func(t *testing.T) {
		id := formatID(created["id"])
		resp := do(t, app, session.NewRequest("GET", "/admin/websites/"+id, nil))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, created["tracking_code"], decode(t, resp)["tracking_code"])

		resp = do(t, app, session.NewRequest("GET", "/admin/websites/"+formatID(float64(foreign.ID)), nil))
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

		resp = do(t, app, session.NewRequest("GET", "/admin/websites/abc", nil))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("stats", func(t *testing.T) {
		id := formatID(created["id"])
		code := created["tracking_code"].(string)
		resp := do(t, app, testsupport.NewCollectRequest(`{"tracking_code":"`+code+`","event_type":"pageview","page_url":"/hello"}`))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp = do(t, app, session.NewRequest("GET", "/admin/websites/"+id+"/stats", nil))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		report := decode(t, resp)
		summary := report["summary"].(map[string]any)
		assert.Equal(t, float64(1), summary["visitors"])
		assert.Equal(t, float64(1), summary["page_views"])
		assert.Len(t, report["daily"], 30)
		pages := report["top_pages"].([]any)
		require.Len(t, pages, 1)
		assert.Equal(t, "/hello", pages[0].(map[string]any)["page_url"])

		resp = do(t, app, session.NewRequest("GET", "/admin/websites/"+id+"/stats?start_date=2026-02-30", nil))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		resp = do(t, app, session.NewRequest("GET", "/admin/websites/"+id+"/stats?start_date=2026-03-05&end_date=2026-03-01", nil))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("cross-site form posts are refused", func(t *testing.T) {
		req := session.NewRequest("POST", "/admin/websites", url.Values{"url": {"https://evil.example.com"}, "name": {"Evil"}})
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		resp := do(t, app, req)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, int64(2), testsupport.CountRows(t, db, "websites"))
	})
}

func TestChangePassword(t *testing.T) {
	db, app := setup(t)
	testsupport.CreateTestUser(t, db, "admin", "old-password")

	first := testsupport.LoginTestUser(t, app, "admin", "old-password")
	second := testsupport.LoginTestUser(t, app, "admin", "old-password")

	t.Run("rejects a wrong current password", func(t *testing.T) {
		resp := do(t, app, second.NewRequest("POST", "/admin/account/password", url.Values{
			"current_password": {"wrong"},
			"new_password":     {"new-password"},
		}))
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "current password is incorrect", decode(t, resp)["error"])
	})

	t.Run("rejects a short password", func(t *testing.T) {
		resp := do(t, app, second.NewRequest("POST", "/admin/account/password", url.Values{
			"current_password": {"old-password"},
			"new_password":     {"short"},
		}))
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("changes the password and signs out other sessions", func(t *testing.T) {
		resp := do(t, app, second.NewRequest("POST", "/admin/account/password", url.Values{
			"current_password": {"old-password"},
			"new_password":     {"new-password"},
		}))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp = do(t, app, first.NewRequest("GET", "/admin/websites", nil))
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		session := testsupport.LoginTestUser(t, app, "admin", "new-password")
		assert.NotEmpty(t, session.SessionCookie)
	})
}

func formatID(v any) string {
	return strconv.FormatFloat(v.(float64), 'f', 0, 64)
}
