package referrers

import (
	"net/url"
	"strings"
)

// Direct labels visits without an external referrer
const Direct = "(direct)"

// sources groups referrer hostnames under one display name
var sources = []struct {
	name    string
	domains []string
}{
	{"Google", []string{"google.com", "google.co.uk", "google.de", "google.fr", "google.es", "google.it", "google.ca", "google.com.ua", "google.com.br"}},
	{"Gmail", []string{"mail.google.com"}},
	{"Bing", []string{"bing.com"}},
	{"DuckDuckGo", []string{"duckduckgo.com"}},
	{"Yahoo", []string{"yahoo.com", "search.yahoo.com"}},
	{"Yandex", []string{"yandex.ru", "yandex.com", "ya.ru"}},
	{"Baidu", []string{"baidu.com"}},
	{"Ecosia", []string{"ecosia.org"}},
	{"X/Twitter", []string{"x.com", "twitter.com", "t.co"}},
	{"Facebook", []string{"facebook.com", "fb.com", "l.facebook.com", "lm.facebook.com"}},
	{"Instagram", []string{"instagram.com", "l.instagram.com"}},
	{"LinkedIn", []string{"linkedin.com", "lnkd.in"}},
	{"Reddit", []string{"reddit.com", "old.reddit.com"}},
	{"YouTube", []string{"youtube.com", "youtu.be"}},
	{"TikTok", []string{"tiktok.com"}},
	{"Pinterest", []string{"pinterest.com"}},
	{"Telegram", []string{"t.me", "telegram.org", "web.telegram.org"}},
	{"Hacker News", []string{"news.ycombinator.com"}},
	{"GitHub", []string{"github.com"}},
	{"Stack Overflow", []string{"stackoverflow.com"}},
	{"Medium", []string{"medium.com"}},
	{"Substack", []string{"substack.com"}},
}

var knownReferrers = func() map[string]string {
	m := make(map[string]string)
	for _, s := range sources {
		for _, d := range s.domains {
			m[d] = s.name
		}
	}
	return m
}()

// FriendlyName returns a display name for a referrer hostname.
// Unknown hosts are returned without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(hostname)), ".")
	hostname = strings.TrimPrefix(hostname, "www.")
	if hostname == "" {
		return Direct
	}

	// Walk up the labels so the most specific known domain wins
	for candidate := hostname; candidate != ""; {
		if name, ok := knownReferrers[candidate]; ok {
			return name
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}

	return strings.ToUpper(hostname[:1]) + hostname[1:]
}

// Label turns a stored referrer URL into its report label
func Label(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return Direct
	}
	if !strings.Contains(referrer, "://") {
		referrer = "https://" + referrer
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return Direct
	}
	return FriendlyName(u.Hostname())
}
