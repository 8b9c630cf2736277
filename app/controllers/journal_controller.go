package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/app/repository"
	"github.com/gitwithuli/edgeofict/internal/pkg/apperr"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

type tradeEntryRequest struct {
	EdgeID     uint    `json:"edge_id"`
	Pair       string  `json:"pair"`
	Outcome    string  `json:"outcome"`
	RiskReward float64 `json:"risk_reward"`
	Notes      string  `json:"notes"`
	TakenAt    string  `json:"taken_at"`
	OccurredOn string  `json:"occurred_on"`
}

const maxListLimit = 200

// HandleForwardTestCreate logs a live execution of an edge.
func HandleForwardTestCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req tradeEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "invalid request body",
		})
	}

	takenAt := time.Now()
	if req.TakenAt != "" {
		t, err := time.Parse(time.RFC3339, req.TakenAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation",
				"message": "taken_at must be RFC 3339",
			})
		}
		takenAt = t
	}

	entry := &models.ForwardTestEntry{
		UserID:     userCtx.UserID,
		EdgeID:     req.EdgeID,
		Pair:       req.Pair,
		Outcome:    req.Outcome,
		RiskReward: req.RiskReward,
		Notes:      req.Notes,
		TakenAt:    takenAt,
	}
	if err := entry.Validate(); err != nil {
		return apperr.Respond(c, err)
	}
	if err := repository.GetGlobalRepositories().Journal.CreateForwardTest(entry); err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// HandleForwardTestList returns the caller's forward-test log. Free-tier
// callers only see the trailing seven days; the full history is a paid
// capability.
func HandleForwardTestList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var since *time.Time
	if !tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureFullHistory) {
		cutoff := time.Now().Add(-tierpolicy.FreeHistoryWindow)
		since = &cutoff
	}

	limit := c.QueryInt("limit", maxListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	entries, err := repository.GetGlobalRepositories().Journal.ListForwardTests(userCtx.UserID, since, limit)
	if err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"limited": since != nil,
	})
}

// HandleBacktestCreate logs a historical occurrence of an edge. Backtest
// logging is a paid capability.
func HandleBacktestCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureBacktestLogging) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "validation",
			"message": "backtest logging requires a paid plan",
		})
	}

	var req tradeEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "invalid request body",
		})
	}

	occurredOn := time.Now()
	if req.OccurredOn != "" {
		t, err := time.Parse("2006-01-02", req.OccurredOn)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation",
				"message": "occurred_on must be YYYY-MM-DD",
			})
		}
		occurredOn = t
	}

	entry := &models.BacktestEntry{
		UserID:     userCtx.UserID,
		EdgeID:     req.EdgeID,
		Pair:       req.Pair,
		Outcome:    req.Outcome,
		RiskReward: req.RiskReward,
		Notes:      req.Notes,
		OccurredOn: occurredOn,
	}
	if err := entry.Validate(); err != nil {
		return apperr.Respond(c, err)
	}
	if err := repository.GetGlobalRepositories().Journal.CreateBacktest(entry); err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

// HandleBacktestList returns backtest entries, optionally filtered by edge.
func HandleBacktestList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureBacktestLogging) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "validation",
			"message": "backtest logging requires a paid plan",
		})
	}

	limit := c.QueryInt("limit", maxListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	edgeID := uint(c.QueryInt("edge_id", 0))

	entries, err := repository.GetGlobalRepositories().Journal.ListBacktests(userCtx.UserID, edgeID, limit)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// HandleEdgeStatsList returns per-edge aggregates (trade count, win rate
// inputs, average risk/reward).
func HandleEdgeStatsList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	stats, err := repository.GetGlobalRepositories().Journal.EdgeStats(userCtx.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}
