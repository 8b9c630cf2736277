package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want PathClass
	}{
		{"Landing", "/", ClassPublic},
		{"Pricing", "/pricing", ClassPublic},
		{"StaticAsset", "/assets/css/app.css", ClassPublic},
		{"Favicon", "/favicon.ico", ClassPublic},
		{"Health", "/health", ClassPublic},
		{"ApiDocs", "/docs/v1/openapi.yml", ClassPublic},

		{"NowpaymentsWebhook", "/api/webhooks/nowpayments", ClassPublicAPI},
		{"StripeWebhook", "/api/webhooks/stripe", ClassPublicAPI},
		{"CronSweep", "/api/cron/check-subscriptions", ClassPublicAPI},
		{"AutoBackup", "/api/backup/auto", ClassPublicAPI},
		{"PublicCalendar", "/api/public/calendar", ClassPublicAPI},
		{"ContactForm", "/api/contact", ClassPublicAPI},

		{"Login", "/login", ClassAuthOnly},
		{"Register", "/register", ClassAuthOnly},
		{"Activate", "/activate/abc123", ClassAuthOnly},
		{"OAuthStart", "/auth/google", ClassAuthOnly},

		{"Dashboard", "/dashboard", ClassProtected},
		{"Edges", "/edges", ClassProtected},
		{"EdgeAPI", "/api/v1/edges", ClassProtected},
		{"CheckoutAPI", "/api/checkout", ClassProtected},
		{"Unknown", "/some/unknown/path", ClassProtected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPath(tt.path))
		})
	}
}

// Paths that look similar to exempt ones must still be protected: the
// classifier matches prefixes, not substrings anywhere in the path.
func TestClassifyPathNoSubstringMatch(t *testing.T) {
	assert.Equal(t, ClassProtected, ClassifyPath("/journal/api/webhooks/nowpayments"))
	assert.Equal(t, ClassProtected, ClassifyPath("/pricing/history"))
	assert.Equal(t, ClassProtected, ClassifyPath("/loginhistory"))
}

// newInterceptorApp wires a minimal app with a fixed user context in place
// of the session-backed middleware, so the gate decisions can be exercised
// without a session store.
func newInterceptorApp(ctx usercontext.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("USER_CONTEXT", ctx)
		return c.Next()
	})
	app.Use(Interceptor)

	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }
	app.Get("/", ok)
	app.Get("/login", ok)
	app.Get("/dashboard", ok)
	app.Get("/api/v1/edges", ok)
	app.Post("/api/checkout", ok)
	return app
}

func TestInterceptorAnonymous(t *testing.T) {
	app := newInterceptorApp(usercontext.UserContext{IsLoggedIn: false})

	t.Run("ProtectedPageRedirectsHome", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/dashboard", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))
	})

	t.Run("ProtectedAPIGetsJSON401", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/edges", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(fiber.HeaderLocation))
	})

	t.Run("LoginFormPasses", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("LandingPasses", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestInterceptorAuthenticated(t *testing.T) {
	t.Run("AuthOnlyPageRedirectsToDashboard", func(t *testing.T) {
		app := newInterceptorApp(usercontext.UserContext{UserID: 7, IsLoggedIn: true, Tier: "free"})
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/login", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/dashboard", resp.Header.Get(fiber.HeaderLocation))
	})

	// A store failure resolves to the free tier upstream; free keeps
	// dashboard access, so the gate lets the request through.
	t.Run("FreeTierReachesDashboard", func(t *testing.T) {
		app := newInterceptorApp(usercontext.UserContext{UserID: 7, IsLoggedIn: true, Tier: "free"})
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/dashboard", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("UnpaidTierPageRedirectsToPricing", func(t *testing.T) {
		app := newInterceptorApp(usercontext.UserContext{UserID: 7, IsLoggedIn: true, Tier: "unpaid"})
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/dashboard", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/pricing", resp.Header.Get(fiber.HeaderLocation))
	})

	t.Run("UnpaidTierAPIGetsJSON403", func(t *testing.T) {
		app := newInterceptorApp(usercontext.UserContext{UserID: 7, IsLoggedIn: true, Tier: "unpaid"})
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/edges", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	// An unpaid user must still be able to start a checkout.
	t.Run("UnpaidTierCheckoutIsExempt", func(t *testing.T) {
		app := newInterceptorApp(usercontext.UserContext{UserID: 7, IsLoggedIn: true, Tier: "unpaid"})
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/checkout", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
