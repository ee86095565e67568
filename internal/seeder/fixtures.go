package seeder

import (
	"fmt"
	"math/rand/v2"
)

type page struct {
	path  string
	title string
}

var demoWebsites = []struct{ url, name string }{
	{"https://example.com", "Example"},
	{"https://blog.example.com", "Example Blog"},
}

var (
	home     = page{"/", "Home"}
	about    = page{"/about", "About us"}
	pricing  = page{"/pricing", "Pricing"}
	features = page{"/features", "Features"}
	signup   = page{"/signup", "Sign up"}
	blog     = page{"/blog", "Blog"}
	article1 = page{"/blog/hello-world", "Hello world"}
	article2 = page{"/blog/release-notes", "Release notes"}
	docs     = page{"/docs", "Documentation"}
	contact  = page{"/contact", "Contact"}
)

var journeyTemplates = [][]page{
	{home, about, contact},
	{home, features, pricing, signup},
	{home, blog, article1, signup},
	{pricing, features, signup},
	{home, docs},
	{home, blog, article1, article2},
	{home, signup},
	{article1, about, pricing},
	{home},
	{article2},
}

// utmSources are source, medium and campaign triples
var utmSources = [][3]string{
	{"newsletter", "email", "spring_launch"},
	{"twitter", "social", "release"},
	{"google", "cpc", "brand"},
	{"linkedin", "social", "hiring"},
}

// generateIPPool creates a pool of unique public-looking IPv4 addresses
func generateIPPool(rng *rand.Rand, count int) []string {
	seen := make(map[string]bool)
	var ips []string
	for len(ips) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", rng.IntN(200)+11, rng.IntN(256), rng.IntN(256), rng.IntN(254)+1)
		if !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	return ips
}

// getUserAgents returns a list of common user agent strings
func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	}
}

// getReferrers returns a list of common referrers, "" meaning direct
func getReferrers() []string {
	return []string{
		"",
		"",
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
		"https://news.ycombinator.com/",
		"https://www.reddit.com/r/golang/",
		"https://github.com/",
		"https://t.co/abc123",
	}
}
