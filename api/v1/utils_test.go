package v1

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIPVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain ipv4", raw: "79.144.65.173", want: "79.144.65.173"},
		{name: "ipv4 with spaces", raw: " 79.144.65.173 ", want: "79.144.65.173"},
		{name: "quoted ipv4", raw: "\"79.144.65.173\"", want: "79.144.65.173"},
		{name: "ipv4 with port", raw: "79.144.65.173:443", want: "79.144.65.173"},
		{name: "ipv6 literal", raw: "2001:db8::1", want: "2001:db8::1"},
		{name: "ipv6 in brackets", raw: "[2001:db8::1]", want: "2001:db8::1"},
		{name: "ipv6 with port", raw: "[2001:db8::1]:8443", want: "2001:db8::1"},
		{name: "ipv6 with zone", raw: "fe80::1%eth0", want: "fe80::1"},
		{name: "ipv4 mapped ipv6", raw: "::ffff:203.0.113.9", want: "203.0.113.9"},
		{name: "invalid value", raw: "not-an-ip", want: ""},
		{name: "empty", raw: "   ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, addr := normalizeIP(tc.raw)
			assert.Equal(t, tc.want, got)
			if tc.want == "" {
				assert.False(t, addr.IsValid())
				return
			}
			assert.Equal(t, tc.want, addr.String())
		})
	}
}

func TestSelectPreferredIP(t *testing.T) {
	assert.Equal(t, "203.0.113.9", selectPreferredIP([]string{"10.0.0.1", "2001:db8::1", "203.0.113.9"}))
	assert.Equal(t, "2001:db8::1", selectPreferredIP([]string{"10.0.0.1", "2001:db8::1"}))
	assert.Equal(t, "10.0.0.1", selectPreferredIP([]string{"garbage", "10.0.0.1"}))
	assert.Equal(t, "", selectPreferredIP([]string{"", "garbage"}))
}

func TestParseForwardedHeader(t *testing.T) {
	got := parseForwardedHeader(`for=192.0.2.60;proto=http;by=203.0.113.43, For="[2001:db8:cafe::17]:4711"`)
	assert.Equal(t, []string{"192.0.2.60", `"[2001:db8:cafe::17]:4711"`}, got)
}

func TestGetClientIP(t *testing.T) {
	var trusted bool
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(getClientIP(c, trusted))
	})

	call := func(t *testing.T, headers map[string]string) string {
		t.Helper()
		req := httptest.NewRequest("GET", "/", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		return string(buf[:n])
	}

	t.Run("ignores proxy headers unless trusted", func(t *testing.T) {
		trusted = false
		assert.NotEqual(t, "198.51.100.7", call(t, map[string]string{"X-Forwarded-For": "198.51.100.7"}))
	})

	t.Run("uses forwarded for when trusted", func(t *testing.T) {
		trusted = true
		assert.Equal(t, "198.51.100.7", call(t, map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"}))
		assert.Equal(t, "198.51.100.8", call(t, map[string]string{"X-Real-IP": "198.51.100.8"}))
		assert.Equal(t, "192.0.2.60", call(t, map[string]string{"Forwarded": "for=192.0.2.60;proto=https"}))
	})
}

func TestGenerateETag(t *testing.T) {
	a := generateETag([]byte("one"))
	assert.Equal(t, a, generateETag([]byte("one")))
	assert.NotEqual(t, a, generateETag([]byte("two")))
	assert.True(t, a[0] == '"' && a[len(a)-1] == '"')
}
