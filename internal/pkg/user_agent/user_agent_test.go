package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/pkg/user_agent"
)

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		name            string
		userAgent       string
		expectedBrowser string
		expectedOS      string
		expectedDevice  string
	}{
		{
			name:            "Chrome on Windows",
			userAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			expectedBrowser: "Chrome",
			expectedOS:      "Windows",
			expectedDevice:  "Desktop",
		},
		{
			name:            "Safari on iPhone",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedBrowser: "Safari",
			expectedOS:      "iOS",
			expectedDevice:  "Mobile",
		},
		{
			name:            "Chrome on Android",
			userAgent:       "Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
			expectedBrowser: "Chrome",
			expectedOS:      "Android",
			expectedDevice:  "Mobile",
		},
		{
			name:            "Safari on iPad refines to tablet",
			userAgent:       "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedBrowser: "Safari",
			expectedOS:      "iOS",
			expectedDevice:  "Tablet",
		},
		{
			name:            "Firefox on Linux",
			userAgent:       "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
			expectedBrowser: "Firefox",
			expectedOS:      "Linux",
			expectedDevice:  "Desktop",
		},
		{
			name:            "Edge on macOS",
			userAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			expectedBrowser: "Edge",
			expectedOS:      "MacOS",
			expectedDevice:  "Desktop",
		},
		{
			name:            "Internet Explorer 11",
			userAgent:       "Mozilla/5.0 (Windows NT 6.1; Trident/7.0; rv:11.0) like Gecko",
			expectedBrowser: "Internet Explorer",
			expectedOS:      "Windows",
			expectedDevice:  "Desktop",
		},
		{
			name:            "Empty user agent",
			userAgent:       "",
			expectedBrowser: "Unknown",
			expectedOS:      "Unknown",
			expectedDevice:  "Desktop",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := user_agent.ParseUserAgent(tc.userAgent)

			assert.Equal(t, tc.expectedBrowser, result.Browser)
			assert.Equal(t, tc.expectedOS, result.OS)
			assert.Equal(t, tc.expectedDevice, result.Device)
			assert.False(t, result.Bot)
		})
	}
}

func TestParseUserAgentBots(t *testing.T) {
	result := user_agent.ParseUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	assert.True(t, result.Bot)
	assert.Equal(t, user_agent.DeviceBot, result.Device)

	result = user_agent.ParseUserAgent("curl/8.4.0")
	assert.True(t, result.Bot)
}

func TestNewParserCustomRules(t *testing.T) {
	p, err := user_agent.NewParser([]byte(`
devices:
  - regex: 'Phone'
    name: Mobile
browsers:
  - regex: 'Foo'
    name: FooBrowser
`))
	require.NoError(t, err)

	result := p.Parse("Foo/1.0 Phone")
	assert.Equal(t, "FooBrowser", result.Browser)
	assert.Equal(t, "Mobile", result.Device)
	assert.True(t, result.Mobile)
	assert.Equal(t, "Unknown", result.OS)

	_, err = user_agent.NewParser([]byte("devices: [unclosed"))
	assert.Error(t, err)
}
