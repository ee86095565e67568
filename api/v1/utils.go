package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyHeaders are consulted in order when proxy headers are trusted
var proxyHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// getClientIP returns the address events are attributed to. Without trusted
// proxy headers this is always the connecting peer.
func getClientIP(c *fiber.Ctx, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if ip := selectPreferredIP(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ip != "" {
			return ip
		}
		for _, header := range proxyHeaders {
			if ip := selectPreferredIP([]string{c.Get(header)}); ip != "" {
				return ip
			}
		}
		if forwarded := c.Get("Forwarded"); forwarded != "" {
			if ip := selectPreferredIP(parseForwardedHeader(forwarded)); ip != "" {
				return ip
			}
		}
	}

	if ip, _ := normalizeIP(c.Context().RemoteIP().String()); ip != "" {
		return ip
	}
	return c.IP()
}

// selectPreferredIP picks the first public address, preferring IPv4.
// When every candidate is private the first valid one is returned.
func selectPreferredIP(values []string) string {
	var ipv6Fallback, privateFallback string

	for _, raw := range values {
		clean, addr := normalizeIP(raw)
		if clean == "" {
			continue
		}
		if isPrivateAddr(addr) {
			if privateFallback == "" {
				privateFallback = clean
			}
			continue
		}
		if addr.Is4() {
			return clean
		}
		if ipv6Fallback == "" {
			ipv6Fallback = clean
		}
	}

	if ipv6Fallback != "" {
		return ipv6Fallback
	}
	return privateFallback
}

func isPrivateAddr(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

// normalizeIP strips quotes, ports, brackets and zones from an address
func normalizeIP(raw string) (string, netip.Addr) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return "", netip.Addr{}
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		addr := addrPort.Addr().Unmap().WithZone("")
		return addr.String(), addr
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		addr = addr.Unmap().WithZone("")
		return addr.String(), addr
	}

	if host, _, err := net.SplitHostPort(clean); err == nil && host != clean {
		return normalizeIP(host)
	}

	return "", netip.Addr{}
}

// parseForwardedHeader extracts the for= values of an RFC 7239 header
func parseForwardedHeader(header string) []string {
	var candidates []string
	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				candidates = append(candidates, part[4:])
			}
		}
	}
	return candidates
}

// generateETag creates a strong ETag from content using SHA-256
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}
