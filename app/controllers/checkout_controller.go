package controllers

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/app/repository"
	"github.com/gitwithuli/edgeofict/internal/pkg/database"
	"github.com/gitwithuli/edgeofict/internal/pkg/env"
	"github.com/gitwithuli/edgeofict/internal/pkg/payments/nowpayments"
	"github.com/gitwithuli/edgeofict/internal/pkg/payments/stripepay"
	"github.com/gitwithuli/edgeofict/internal/pkg/session"
	"github.com/gitwithuli/edgeofict/internal/pkg/subscriptions"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// planPrices is the advertised USD price per paid plan, used for crypto
// invoices. Card pricing lives in the provider's price objects instead.
var planPrices = map[string]float64{
	models.PlanTrader:      29,
	models.PlanInnerCircle: 79,
}

// HandleCheckout starts a card checkout for one of the paid plans. Without
// provider credentials it falls back to the trial simulator, which upserts a
// seven-day trial and sends the caller straight to the dashboard.
func HandleCheckout(c *fiber.Ctx) error {
	userCtx, ok := requireJSONLogin(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "invalid request body",
		})
	}
	if !models.IsPaidPlan(req.Plan) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": fmt.Sprintf("plan must be %q or %q", models.PlanTrader, models.PlanInnerCircle),
		})
	}

	stripeClient, err := stripepay.NewClientFromEnv()
	if err != nil {
		log.Printf("[Checkout] stripe configuration error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "server",
			"message": "payment configuration error",
		})
	}

	if !stripeClient.Configured() {
		return simulateCheckout(c, userCtx.UserID, req.Plan)
	}

	user, err := repository.GetGlobalRepositories().User.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "server",
			"message": "could not load account",
		})
	}

	appURL := env.GetEnv("APP_URL", "http://localhost:3000")
	url, err := stripeClient.CreateCheckoutSession(
		userCtx.UserID,
		user.Email,
		req.Plan,
		appURL+"/dashboard?checkout=success",
		appURL+"/pricing?checkout=cancelled",
	)
	if err != nil {
		log.Printf("[Checkout] stripe session failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "network",
			"message": "payment provider unavailable",
		})
	}

	return c.JSON(fiber.Map{"url": url})
}

// simulateCheckout is the no-credentials path used in development and on
// fresh deployments: the user gets a time-boxed trial instead of a payment
// page.
func simulateCheckout(c *fiber.Ctx, userID uint, plan string) error {
	svc := subscriptions.NewServiceFromDB(database.GetDB())
	if _, err := svc.StartTrial(c.UserContext(), userID, plan); err != nil {
		if errors.Is(err, tierpolicy.ErrAlreadySubscribed) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation",
				"message": "already subscribed",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "server",
			"message": "could not start trial",
		})
	}

	// Next request re-reads the tier from the store.
	_ = session.DeleteSessionValue(c, usercontext.KeyTier)
	_ = session.DeleteSessionValue(c, usercontext.KeyTierExpiry)

	appURL := env.GetEnv("APP_URL", "http://localhost:3000")
	return c.JSON(fiber.Map{"url": appURL + "/dashboard?trial=started"})
}

// HandleCryptoCheckout creates a NOWPayments invoice for the requested plan.
func HandleCryptoCheckout(c *fiber.Ctx) error {
	userCtx, ok := requireJSONLogin(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil || !models.IsPaidPlan(req.Plan) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "a paid plan is required",
		})
	}

	client := nowpayments.NewClientFromEnv()
	if !client.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "server",
			"message": "crypto payments are not configured",
		})
	}

	// Admission: a user already on a paid tier must manage the existing
	// subscription instead of stacking a second one.
	svc := subscriptions.NewServiceFromDB(database.GetDB())
	sub, err := svc.Record(c.UserContext(), userCtx.UserID)
	if admitErr := admitCryptoCheckout(sub, err); admitErr != nil {
		if errors.Is(admitErr, tierpolicy.ErrAlreadySubscribed) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation",
				"message": "already subscribed",
			})
		}
		log.Printf("[Checkout] subscription lookup failed for user %d: %v", userCtx.UserID, admitErr)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "network",
			"message": "subscription lookup unavailable",
		})
	}

	appURL := env.GetEnv("APP_URL", "http://localhost:3000")
	invoice, err := client.CreateInvoice(c.UserContext(), nowpayments.InvoiceRequest{
		PriceAmount:      planPrices[req.Plan],
		PriceCurrency:    "usd",
		OrderID:          nowpayments.BuildOrderID(userCtx.UserID),
		OrderDescription: "Edge of ICT " + req.Plan + " (30 days)",
		SuccessURL:       appURL + "/dashboard?checkout=success",
		CancelURL:        appURL + "/pricing?checkout=cancelled",
		IPNCallbackURL:   appURL + "/api/webhooks/nowpayments",
	})
	if err != nil {
		log.Printf("[Checkout] crypto invoice failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "network",
			"message": "crypto payment provider unavailable",
		})
	}

	return c.JSON(fiber.Map{"url": invoice.InvoiceURL})
}

// HandleBillingPortal opens the card provider's self-service portal.
func HandleBillingPortal(c *fiber.Ctx) error {
	userCtx, ok := requireJSONLogin(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}

	svc := subscriptions.NewServiceFromDB(database.GetDB())
	sub, err := svc.Record(c.UserContext(), userCtx.UserID)
	if err != nil || sub.StripeCustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "no card subscription on file",
		})
	}

	stripeClient, err := stripepay.NewClientFromEnv()
	if err != nil || !stripeClient.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "server",
			"message": "card payments are not configured",
		})
	}

	appURL := env.GetEnv("APP_URL", "http://localhost:3000")
	url, err := stripeClient.CreatePortalSession(sub.StripeCustomerID, appURL+"/dashboard")
	if err != nil {
		log.Printf("[Checkout] portal session failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "network",
			"message": "payment provider unavailable",
		})
	}

	return c.JSON(fiber.Map{"url": url})
}

// admitCryptoCheckout maps the subscription lookup outcome to an admission
// decision. A missing record admits the first checkout; any other lookup
// failure does not, since skipping the check on an outage would let a paid
// user stack a second invoice.
func admitCryptoCheckout(sub *models.Subscription, lookupErr error) error {
	if lookupErr != nil {
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return nil
		}
		return lookupErr
	}
	return tierpolicy.AdmitCryptoCheckout(sub)
}

// parseUserID converts a metadata user id string back to the internal id.
func parseUserID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return uint(v), nil
}
