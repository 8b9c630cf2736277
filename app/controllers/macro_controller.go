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

type macroEventRequest struct {
	Title    string `json:"title"`
	Currency string `json:"currency"`
	Impact   string `json:"impact"`
	Notes    string `json:"notes"`
	EventAt  string `json:"event_at"`
}

// calendarRange reads the from/to query window, defaulting to the next 14
// days.
func calendarRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	from := time.Now().Truncate(24 * time.Hour)
	to := from.Add(14 * 24 * time.Hour)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, err
		}
		to = t.Add(24 * time.Hour)
	}
	return from, to, nil
}

// HandlePublicCalendar serves the shared macro calendar. No login required.
func HandlePublicCalendar(c *fiber.Ctx) error {
	from, to, err := calendarRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "from/to must be YYYY-MM-DD",
		})
	}

	events, err := repository.GetGlobalRepositories().Macro.ListPublic(from, to)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleMacroList returns the caller's private macro tracker entries.
func HandleMacroList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureMacroTracker) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "validation",
			"message": "the macro tracker requires a paid plan",
		})
	}

	from, to, err := calendarRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "from/to must be YYYY-MM-DD",
		})
	}

	events, err := repository.GetGlobalRepositories().Macro.ListByUserID(userCtx.UserID, from, to)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleMacroCreate adds a private macro tracker entry.
func HandleMacroCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureMacroTracker) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "validation",
			"message": "the macro tracker requires a paid plan",
		})
	}

	var req macroEventRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "invalid request body",
		})
	}

	eventAt, err := time.Parse(time.RFC3339, req.EventAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "event_at must be RFC 3339",
		})
	}

	event := &models.MacroEvent{
		UserID:   userCtx.UserID,
		Title:    req.Title,
		Currency: req.Currency,
		Impact:   req.Impact,
		Notes:    req.Notes,
		EventAt:  eventAt,
	}
	if event.Impact == "" {
		event.Impact = models.ImpactLow
	}
	if err := event.Validate(); err != nil {
		return apperr.Respond(c, err)
	}
	if err := repository.GetGlobalRepositories().Macro.Create(event); err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

// HandleMacroDelete removes a private tracker entry owned by the caller.
// The shared calendar (user id 0) is not writable through this endpoint.
func HandleMacroDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "invalid event id",
		})
	}

	if err := repository.GetGlobalRepositories().Macro.Delete(uint(id), userCtx.UserID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
