package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/internal/pkg/constants"
	"github.com/gitwithuli/edgeofict/internal/pkg/session"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

// PathClass is the access class a request path falls into.
type PathClass int

const (
	// ClassPublic pages are reachable by anyone, no session required.
	ClassPublic PathClass = iota
	// ClassPublicAPI endpoints authenticate themselves (webhook signatures,
	// cron bearer tokens) or are intentionally open; never tier-gated.
	ClassPublicAPI
	// ClassAuthOnly pages only make sense for anonymous visitors, e.g. the
	// login form.
	ClassAuthOnly
	// ClassProtected is everything else: requires a session and a tier that
	// grants dashboard access.
	ClassProtected
)

var publicExact = map[string]struct{}{
	constants.HomeRoute:    {},
	constants.PricingRoute: {},
	"/contact":             {},
	"/about":               {},
	"/imprint":             {},
	"/health":              {},
	"/robots.txt":          {},
}

var publicPrefixes = []string{
	"/assets/",
	"/favicon",
	"/docs/",
}

var publicAPIPrefixes = []string{
	"/api/webhooks/",
	"/api/cron/",
	"/api/backup/",
	"/api/public/",
	"/api/contact",
}

var authOnlyExact = map[string]struct{}{
	constants.LoginRoute:    {},
	constants.RegisterRoute: {},
	"/forgot-password":      {},
	"/reset-password":       {},
}

var authOnlyPrefixes = []string{
	"/activate",
	"/auth/",
}

// tierExemptPrefixes are protected paths that require a session but no tier:
// an unpaid user must still be able to reach checkout and billing.
var tierExemptPrefixes = []string{
	"/api/checkout",
	"/api/billing/",
}

func tierExempt(path string) bool {
	for _, p := range tierExemptPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ClassifyPath resolves a request path to its access class using exact and
// prefix allow-lists. Unknown paths are protected.
func ClassifyPath(path string) PathClass {
	if _, ok := publicExact[path]; ok {
		return ClassPublic
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassPublic
		}
	}
	for _, p := range publicAPIPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassPublicAPI
		}
	}
	if _, ok := authOnlyExact[path]; ok {
		return ClassAuthOnly
	}
	for _, p := range authOnlyPrefixes {
		if strings.HasPrefix(path, p) {
			return ClassAuthOnly
		}
	}
	return ClassProtected
}

// Interceptor gates every request before it reaches a handler. It must run
// after UserContextMiddleware so the session identity is already resolved.
//
// The session cookie is refreshed on every pass that carries one, including
// the redirect branches: rotation happens before the redirect status is
// written so the re-issued cookie rides on the redirect response.
func Interceptor(c *fiber.Ctx) error {
	class := ClassifyPath(c.Path())
	if class == ClassPublicAPI {
		// Machine-to-machine traffic carries no browser session.
		return c.Next()
	}

	rotateCookie(c)
	ctx := usercontext.GetUserContext(c)

	switch class {
	case ClassPublic:
		return c.Next()
	case ClassAuthOnly:
		if ctx.IsLoggedIn {
			return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
		}
		return c.Next()
	default:
		isAPI := strings.HasPrefix(c.Path(), "/api/")
		if !ctx.IsLoggedIn {
			if isAPI {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   "unauthorized",
					"message": "login required",
				})
			}
			return c.Redirect(constants.HomeRoute, fiber.StatusSeeOther)
		}
		if tierExempt(c.Path()) {
			return c.Next()
		}
		if !tierpolicy.CanAccess(ctx.Tier, tierpolicy.FeatureDashboard) {
			if isAPI {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":   "validation",
					"message": "subscription required",
				})
			}
			return c.Redirect(constants.PricingRoute, fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

func rotateCookie(c *fiber.Ctx) {
	if c.Cookies("session_id") == "" {
		return
	}
	if err := session.Rotate(c); err != nil {
		log.Printf("[Interceptor] session rotation failed: %v", err)
	}
}
