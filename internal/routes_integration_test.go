package internal

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/config"
)

func findRoute(routes []fiber.Route, method, path string) *fiber.Route {
	for idx := range routes {
		if routes[idx].Method == method && routes[idx].Path == path {
			return &routes[idx]
		}
	}
	return nil
}

func TestCollectRouteRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	collectRoute := findRoute(srv.App.GetRoutes(true), fiber.MethodPost, "/api/collect")
	require.NotNil(t, collectRoute, "expected collect route to be registered")

	// The limiter sits behind a production-only wrapper defined in MountAppRoutes
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range collectRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "MountAppRoutes.func") {
			hasRateLimiter = true
			break
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for collect route, handlers: %v", handlerNames)
}

func TestRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	expected := []struct{ method, path string }{
		{fiber.MethodGet, "/_health"},
		{fiber.MethodGet, "/metrics"},
		{fiber.MethodPost, "/api/collect"},
		{fiber.MethodOptions, "/api/collect"},
		{fiber.MethodGet, "/api/collect"},
		{fiber.MethodHead, "/api/collect"},
		{fiber.MethodPut, "/api/collect"},
		{fiber.MethodPatch, "/api/collect"},
		{fiber.MethodDelete, "/api/collect"},
		{fiber.MethodGet, "/tracker.js"},
		{fiber.MethodGet, "/login"},
		{fiber.MethodPost, "/login"},
		{fiber.MethodPost, "/logout"},
		{fiber.MethodGet, "/admin/websites"},
		{fiber.MethodPost, "/admin/websites"},
		{fiber.MethodGet, "/admin/websites/:id"},
		{fiber.MethodGet, "/admin/websites/:id/stats"},
		{fiber.MethodPost, "/admin/account/password"},
	}
	for _, e := range expected {
		assert.NotNilf(t, findRoute(routes, e.method, e.path), "missing route %s %s", e.method, e.path)
	}
}

func TestNewServerConfig(t *testing.T) {
	cfg := NewServerConfig(&config.Config{PublicAssetsUrlPrefix: "/static"})

	assert.False(t, cfg.EnableSecFetchSite, "global fetch metadata check would block tracker beacons")
	assert.Equal(t, "/static", cfg.StaticPrefix)
	assert.True(t, cfg.EnableRecover)
}
