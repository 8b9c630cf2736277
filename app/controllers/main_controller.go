package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/app/repository"
	"github.com/gitwithuli/edgeofict/internal/pkg/apperr"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
	"github.com/gitwithuli/edgeofict/internal/pkg/utils"
)

// HandleHealth is the load balancer probe.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleDashboard summarizes the caller's journal: edges, per-edge stats and
// the capabilities their tier unlocks.
func HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repos := repository.GetGlobalRepositories()

	user, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	edges, err := repos.Edge.GetByUserID(userCtx.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	stats, err := repos.Journal.EdgeStats(userCtx.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"username":  userCtx.Username,
		"avatarUrl": utils.GetGravatarURL(user.Email, 200),
		"tier":      userCtx.Tier,
		"edges":     edges,
		"stats":     stats,
		"features": fiber.Map{
			"backtests":    tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureBacktestLogging),
			"macroTracker": tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureMacroTracker),
			"fullHistory":  tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureFullHistory),
		},
	})
}
