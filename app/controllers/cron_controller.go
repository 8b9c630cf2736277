package controllers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/app/repository"
	"github.com/gitwithuli/edgeofict/internal/pkg/backup"
	"github.com/gitwithuli/edgeofict/internal/pkg/database"
	"github.com/gitwithuli/edgeofict/internal/pkg/env"
	"github.com/gitwithuli/edgeofict/internal/pkg/subscriptions"
)

// HandleSubscriptionSweep runs the bulk expiry pass. The scheduler hits this
// endpoint; bearer authentication happens in the route middleware.
func HandleSubscriptionSweep(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := subscriptions.NewServiceFromDB(database.GetDB())
	result, err := svc.Sweep(ctx, time.Now())
	if err != nil {
		log.Printf("[Cron] subscription sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "server",
			"message": "sweep failed",
		})
	}

	// Counts only. Which records moved stays out of the logs.
	return c.JSON(result)
}

// HandleAutoBackup exports the configured subject user's journal to S3.
func HandleAutoBackup(c *fiber.Ctx) error {
	subjectEmail := env.GetEnv("BACKUP_SUBJECT_EMAIL", "")
	if subjectEmail == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "server",
			"message": "backup subject is not configured",
		})
	}

	repos := repository.GetGlobalRepositories()
	user, err := repos.User.GetByEmail(subjectEmail)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "notFound",
			"message": "backup subject user does not exist",
		})
	}

	cfg, err := backup.LoadConfig()
	if err != nil || !cfg.IsEnabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "server",
			"message": "backup storage is not configured",
		})
	}

	client, err := backup.NewClient(cfg)
	if err != nil {
		log.Printf("[Cron] backup client init failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "network",
			"message": "backup storage unavailable",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	exporter := backup.NewExporter(repos, client, cfg)
	key, err := exporter.Export(ctx, user.ID)
	if err != nil {
		log.Printf("[Cron] journal export failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "server",
			"message": "journal export failed",
		})
	}

	return c.JSON(fiber.Map{"ok": true, "objectKey": key})
}
