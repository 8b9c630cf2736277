package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/gitwithuli/edgeofict/app/controllers"
	"github.com/gitwithuli/edgeofict/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
		// Webhooks must never be throttled away: a dropped delivery is a
		// missed payment until the next sweep.
		Next: func(c *fiber.Ctx) bool {
			return len(c.Path()) >= len("/api/webhooks") && c.Path()[:len("/api/webhooks")] == "/api/webhooks"
		},
	}))

	// Provider webhooks: signature-verified in the handlers, no session.
	api.Post("/webhooks/nowpayments", controllers.HandleNowPaymentsWebhook)
	api.Post("/webhooks/stripe", controllers.HandleStripeWebhook)

	// Scheduler endpoints: shared-secret bearer auth.
	api.Get("/cron/check-subscriptions",
		middleware.RequireSharedSecret("CRON_SECRET"),
		controllers.HandleSubscriptionSweep)
	api.Get("/backup/auto",
		middleware.RequireSharedSecret("BACKUP_CRON_SECRET", "CRON_SECRET"),
		controllers.HandleAutoBackup)

	// Open data + contact.
	api.Get("/public/calendar", controllers.HandlePublicCalendar)
	api.Post("/contact", controllers.HandleContact)

	// Checkout and billing (session auth, no tier gate: an unpaid user must
	// be able to pay).
	api.Post("/checkout", controllers.HandleCheckout)
	api.Post("/checkout/crypto", controllers.HandleCryptoCheckout)
	api.Post("/billing/portal", controllers.HandleBillingPortal)

	// Journal API.
	v1 := api.Group("/v1", middleware.RequireAPISessionAuth)
	v1.Get("/edges", controllers.HandleEdgeList)
	v1.Post("/edges", controllers.HandleEdgeCreate)
	v1.Get("/edges/:uuid", controllers.HandleEdgeGet)
	v1.Put("/edges/:uuid", controllers.HandleEdgeUpdate)
	v1.Delete("/edges/:uuid", controllers.HandleEdgeDelete)

	v1.Get("/forwardtests", controllers.HandleForwardTestList)
	v1.Post("/forwardtests", controllers.HandleForwardTestCreate)

	v1.Get("/backtests", controllers.HandleBacktestList)
	v1.Post("/backtests", controllers.HandleBacktestCreate)

	v1.Get("/stats", controllers.HandleEdgeStatsList)

	v1.Get("/macro", controllers.HandleMacroList)
	v1.Post("/macro", controllers.HandleMacroCreate)
	v1.Delete("/macro/:id", controllers.HandleMacroDelete)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
