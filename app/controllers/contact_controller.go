package controllers

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/internal/pkg/env"
	"github.com/gitwithuli/edgeofict/internal/pkg/hcaptcha"
	"github.com/gitwithuli/edgeofict/internal/pkg/mail"
	"github.com/gitwithuli/edgeofict/internal/pkg/ratelimit"
)

// contactLimiter throttles contact submissions per client IP. Injected so
// tests can swap in a deterministic limiter.
var contactLimiter ratelimit.Limiter = ratelimit.NewMemory(5, time.Hour)

// SetContactLimiter replaces the contact form limiter.
func SetContactLimiter(l ratelimit.Limiter) {
	contactLimiter = l
}

type contactRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Message string `json:"message" form:"message"`
}

// HandleContact forwards a contact form submission to the operator inbox.
func HandleContact(c *fiber.Ctx) error {
	if !contactLimiter.Allow(GetClientIP(c)) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":   "rateLimit",
			"message": "too many messages, try again later",
		})
	}

	var req contactRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "name, email and message are required",
		})
	}

	if token := c.FormValue("h-captcha-response"); token != "" {
		valid, err := hcaptcha.Verify(token)
		if err != nil || !valid {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation",
				"message": "captcha validation failed",
			})
		}
	}

	inbox := env.GetEnv("CONTACT_INBOX", "")
	if inbox == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "server",
			"message": "contact form is not configured",
		})
	}

	body := fmt.Sprintf(
		"<p>From: %s &lt;%s&gt;</p><p>%s</p>",
		req.Name, req.Email, req.Message,
	)
	if err := mail.SendMail(inbox, "Edge of ICT contact form", body); err != nil {
		log.Printf("[Contact] mail delivery failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "server",
			"message": "message could not be delivered",
		})
	}

	return c.JSON(fiber.Map{"ok": true})
}
