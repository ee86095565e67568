package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sitepulse/internal"
	"sitepulse/internal/config"
	"sitepulse/internal/database"
	"sitepulse/internal/users"
	"sitepulse/internal/websites"
)

// SessionCookieName is the expected cookie name for login sessions in tests.
const SessionCookieName = "sitepulse_session"

// TestUserAgent is a desktop Chrome user agent used by request helpers
const TestUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func init() {
	if os.Getenv("SITEPULSE_ENV") == "" {
		os.Setenv("SITEPULSE_ENV", config.Test)
	}
}

// testDBCache caches test databases by root test name so every call within
// the same test shares one database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a named in-memory database with every model migrated.
// cache=shared lets multiple connections see the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	// One connection, like the test environment's pool settings
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA busy_timeout = 5000")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	cfg := config.GetConfig()

	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set SITEPULSE_ENV=test", cfg.Environment)
	}

	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	if len(tableNames) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tableNames {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CountRows returns the number of rows in a table
func CountRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Table(table).Count(&count).Error)
	return count
}

// CreateTestUser creates a user with a bcrypt-hashed password
func CreateTestUser(t *testing.T, db *gorm.DB, username, password string) *users.User {
	t.Helper()

	if existing, err := users.FindByUsername(db, username); err == nil {
		return existing
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := &users.User{
		Username:          username,
		EncryptedPassword: string(hashedPassword),
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestWebsite creates a website with a fixed tracking code, reusing an existing one
func CreateTestWebsite(t *testing.T, db *gorm.DB, ownerID uint, trackingCode string) websites.Website {
	t.Helper()

	var website websites.Website
	if db.Where("tracking_code = ?", trackingCode).First(&website).Error == nil {
		return website
	}

	website = websites.Website{
		TrackingCode: trackingCode,
		URL:          "https://" + trackingCode + ".example.com",
		Name:         "Site " + trackingCode,
		UserID:       ownerID,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(&website).Error)
	return website
}

// GetLogger returns a test logger that only prints errors
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestApp creates a Fiber app with every route mounted on db
func CreateTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	publicDir := t.TempDir()

	cfg := internal.NewServerConfig(appConfig)
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	cfg.StaticDirectory = publicDir
	cfg.TemplatesDirectory = publicDir

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}

// AdminSession carries the login cookie a logged-in test client sends
type AdminSession struct {
	SessionCookie string
}

// CookieHeader renders the session cookie for a Cookie request header
func (s AdminSession) CookieHeader() string {
	return fmt.Sprintf("%s=%s", SessionCookieName, s.SessionCookie)
}

// NewRequest builds a same-origin admin request carrying the session cookie.
// Non-nil forms are sent url-encoded.
func (s AdminSession) NewRequest(method, path string, form url.Values) *http.Request {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("User-Agent", TestUserAgent)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cookie", s.CookieHeader())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req
}

// NewCollectRequest builds a cross-site JSON POST to the ingestion endpoint
func NewCollectRequest(body string) *http.Request {
	req := httptest.NewRequest("POST", "/api/collect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", TestUserAgent)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Origin", "https://blog.example.com")
	return req
}

// NewLoginRequest builds a same-origin login form post
func NewLoginRequest(username, password string) *http.Request {
	form := url.Values{}
	form.Add("username", username)
	form.Add("password", password)

	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", TestUserAgent)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	return req
}

// LoginTestUser logs in through POST /login and returns the admin session
func LoginTestUser(t *testing.T, app *fiber.App, username, password string) AdminSession {
	t.Helper()

	resp, err := app.Test(NewLoginRequest(username, password))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, "/admin/websites", resp.Header.Get("Location"))

	var session AdminSession
	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookieName {
			session.SessionCookie = cookie.Value
		}
	}
	require.NotEmpty(t, session.SessionCookie)
	return session
}
