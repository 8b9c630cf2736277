package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/internal/pkg/database"
	"github.com/gitwithuli/edgeofict/internal/pkg/payments/nowpayments"
	"github.com/gitwithuli/edgeofict/internal/pkg/payments/stripepay"
	"github.com/gitwithuli/edgeofict/internal/pkg/subscriptions"
)

// nowPaymentsIPN is the subset of the IPN payload the handler consumes. The
// payload is only decoded after its signature has been verified.
type nowPaymentsIPN struct {
	PaymentID     json.Number `json:"payment_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
}

// HandleNowPaymentsWebhook applies a verified crypto payment event to the
// subscription store.
func HandleNowPaymentsWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	client := nowpayments.NewClientFromEnv()
	if client.IPNSecret == "" {
		// Never fall back to trusting the payload.
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "ipn_secret_not_configured"})
	}

	signature := strings.TrimSpace(c.Get("x-nowpayments-sig"))
	if err := nowpayments.VerifySignature(rawBody, signature, client.IPNSecret); err != nil {
		if errors.Is(err, nowpayments.ErrMissingSignature) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature"})
		}
		if errors.Is(err, nowpayments.ErrInvalidSignature) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid_signature"})
		}
		// Payload did not even canonicalize.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	var ipn nowPaymentsIPN
	if err := json.Unmarshal(rawBody, &ipn); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	// A foreign or malformed order id is a hard rejection, not a silent
	// no-op: it means the event was never ours.
	userID, err := nowpayments.ParseOrderID(ipn.OrderID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed_order_id"})
	}

	svc := subscriptions.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := svc.RecordWebhookEvent(ctx, subscriptions.WebhookEventInput{
		Provider:        models.PaymentProviderNowPayments,
		ProviderEventID: "",
		EventType:       "payment." + ipn.PaymentStatus,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	_, applyErr := svc.ApplyCryptoPayment(ctx, userID, ipn.PaymentID.String(), ipn.PaymentStatus, time.Now())
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, applyErr)
	if applyErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleStripeWebhook verifies and dispatches card provider events.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	client, err := stripepay.NewClientFromEnv()
	if err != nil {
		log.Printf("[Webhook] stripe configuration error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "configuration_error"})
	}
	if !client.WebhookConfigured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "webhook_secret_not_configured"})
	}

	sigHeader := strings.TrimSpace(c.Get("Stripe-Signature"))
	if sigHeader == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature"})
	}

	event, err := client.VerifyEvent(rawBody, sigHeader)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	svc := subscriptions.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	created, stored, err := svc.RecordWebhookEvent(ctx, subscriptions.WebhookEventInput{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}

	applyErr := applyStripeEvent(ctx, svc, client, string(event.Type), event.Data.Raw)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, applyErr)
	if applyErr != nil {
		log.Printf("[Webhook] stripe event %s (%s) failed: %v", event.ID, event.Type, applyErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "subscription_sync_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

func applyStripeEvent(ctx context.Context, svc *subscriptions.Service, client *stripepay.Client, eventType string, raw []byte) error {
	switch eventType {
	case "checkout.session.completed":
		var sess stripepay.CheckoutSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return err
		}
		if sess.Mode != "" && sess.Mode != "subscription" {
			return nil
		}
		userID, err := parseUserID(sess.UserID())
		if err != nil {
			return err
		}
		plan := strings.TrimSpace(sess.Metadata["plan"])
		_, err = svc.ApplyStripeCheckout(ctx, userID, sess.Customer, sess.Subscription, plan)
		return err

	case "customer.subscription.updated":
		var sub stripepay.SubscriptionEvent
		if err := json.Unmarshal(raw, &sub); err != nil {
			return err
		}
		plan, ok := client.Prices.PlanForPrice(sub.FirstPriceID())
		if !ok {
			log.Printf("[Webhook] unmapped stripe price %q on subscription %s", sub.FirstPriceID(), sub.ID)
		}
		_, err := svc.ApplyStripeSubscriptionUpdate(
			ctx, sub.Customer, sub.ID, plan, sub.Status,
			sub.CancelAtPeriodEnd, sub.PeriodStart(), sub.PeriodEnd(),
		)
		return err

	case "customer.subscription.deleted":
		var sub stripepay.SubscriptionEvent
		if err := json.Unmarshal(raw, &sub); err != nil {
			return err
		}
		_, err := svc.ApplyStripeSubscriptionDeleted(ctx, sub.Customer)
		return err

	case "invoice.payment_failed":
		// Grace handling stays with the provider; nothing is mirrored.
		log.Printf("[Webhook] invoice payment failed event received")
		return nil

	default:
		return nil
	}
}
