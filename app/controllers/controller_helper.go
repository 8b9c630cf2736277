package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

// requireJSONLogin returns an unauthorized JSON response unless the request
// carries a logged-in session. Used by API handlers that are registered on
// tier-exempt paths and therefore gate themselves.
func requireJSONLogin(c *fiber.Ctx) (usercontext.UserContext, bool) {
	ctx := usercontext.GetUserContext(c)
	if !ctx.IsLoggedIn {
		return ctx, false
	}
	return ctx, true
}

// GetClientIP determines the actual client IP address considering proxies.
// Proxy headers are checked in trust order: Cloudflare first, then the
// standard X-Forwarded-For chain, then the socket address.
func GetClientIP(c *fiber.Ctx) string {
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	if xff := strings.TrimSpace(c.Get("X-Forwarded-For")); xff != "" {
		// X-Forwarded-For can contain a list of IPs - the first one is the
		// original client IP
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}

	ipAddr := c.IP()
	// For ::ffff: IPv4-mapped-IPv6 addresses
	if strings.HasPrefix(ipAddr, "::ffff:") && strings.Contains(ipAddr, ".") {
		return strings.TrimPrefix(ipAddr, "::ffff:")
	}
	return ipAddr
}
