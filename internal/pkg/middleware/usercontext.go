package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/internal/pkg/database"
	"github.com/gitwithuli/edgeofict/internal/pkg/session"
	"github.com/gitwithuli/edgeofict/internal/pkg/subscriptions"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Avoid interfering with Goth/Fiber session handling on OAuth routes.
	// Goth uses its own fiber session store and relies on per-request locals.
	// We skip our app session on /auth/* to prevent cross-store collisions.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}
	// Get session with error handling
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return setAnonymousContext(c)
	}

	// Get user ID from session
	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		return setAnonymousContext(c)
	}

	username := session.GetSessionValue(c, usercontext.KeyUsername)
	isAdmin := sess.Get(usercontext.KeyIsAdmin)

	// Tier resolution is session-first, but the cached value carries a
	// deadline: trials and crypto periods lapse on the clock, so a cached
	// tier is only trusted until the record's own boundary (or the refresh
	// interval, whichever comes first). Past the deadline the store is
	// consulted again, which fails closed to free.
	now := time.Now()
	tier := session.GetSessionValue(c, usercontext.KeyTier)
	if !cachedTierUsable(tier, session.GetSessionValue(c, usercontext.KeyTierExpiry), now) {
		var validUntil time.Time
		tier, validUntil = resolveTier(c, userID.(uint), now)
		_ = session.SetSessionValue(c, usercontext.KeyTier, tier)
		_ = session.SetSessionValue(c, usercontext.KeyTierExpiry, strconv.FormatInt(validUntil.Unix(), 10))
	}

	userCtx := usercontext.UserContext{
		UserID:     userID.(uint),
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin != nil && isAdmin.(bool),
		Tier:       tier,
	}
	c.Locals("USER_CONTEXT", userCtx)

	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUsername, username)
	c.Locals(usercontext.KeyUserID, userID.(uint))
	c.Locals(usercontext.KeyIsAdmin, userCtx.IsAdmin)

	return c.Next()
}

func setAnonymousContext(c *fiber.Ctx) error {
	c.Locals("USER_CONTEXT", usercontext.UserContext{
		IsLoggedIn: false,
		IsAdmin:    false,
	})
	c.Locals(usercontext.KeyFromProtected, false)
	c.Locals(usercontext.KeyIsAdmin, false)
	return c.Next()
}

// tierRefreshInterval bounds how long a session reuses a resolved tier
// before consulting the store again, so webhook-applied changes (a crypto
// payment, a card cancellation) reach an active session without a logout.
const tierRefreshInterval = 5 * time.Minute

// cachedTierUsable reports whether a session-cached tier may be trusted at
// the given instant. An empty tier, a missing deadline or a deadline in the
// past all force a fresh store read.
func cachedTierUsable(tier, validUntil string, now time.Time) bool {
	if tier == "" || validUntil == "" {
		return false
	}
	until, err := strconv.ParseInt(validUntil, 10, 64)
	if err != nil {
		return false
	}
	return now.Unix() < until
}

// resolveTier reads the subscription record, applies the pending time-based
// transition so a trial that lapsed between sweeps is already gated as free
// here, and returns the instant until which the result may be cached.
func resolveTier(c *fiber.Ctx, userID uint, now time.Time) (string, time.Time) {
	db := database.GetDB()
	if db == nil {
		return models.TierFree, now.Add(tierRefreshInterval)
	}
	svc := subscriptions.NewServiceFromDB(db)
	tier, sub := svc.RecordOrFree(c.UserContext(), userID)
	if sub != nil {
		tier = tierpolicy.NextTier(sub, now)
	}
	return tier, tierCacheDeadline(sub, tier, now)
}

// tierCacheDeadline caps the cache window at the record's own expiry: a
// trial or crypto period that lapses must be re-gated on the first request
// past the boundary, not one refresh interval later.
func tierCacheDeadline(sub *models.Subscription, tier string, now time.Time) time.Time {
	deadline := now.Add(tierRefreshInterval)
	if sub == nil {
		return deadline
	}
	switch tier {
	case models.TierTrial:
		if sub.TrialEndsAt != nil && sub.TrialEndsAt.Before(deadline) {
			deadline = *sub.TrialEndsAt
		}
	case models.TierPaid:
		if sub.PaymentProvider == models.PaymentProviderNowPayments &&
			sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(deadline) {
			deadline = *sub.CurrentPeriodEnd
		}
	}
	return deadline
}
