package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/app/repository"
	"github.com/gitwithuli/edgeofict/internal/pkg/apperr"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
	"github.com/gitwithuli/edgeofict/internal/pkg/usercontext"
)

type edgeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Timeframe   string `json:"timeframe"`
	Session     string `json:"session"`
	Pairs       string `json:"pairs"`
	Archived    bool   `json:"archived"`
}

// HandleEdgeList returns the caller's edges.
func HandleEdgeList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	edges, err := repository.GetGlobalRepositories().Edge.GetByUserID(userCtx.UserID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"edges": edges})
}

// HandleEdgeCreate creates a new edge. The free tier is capped at a single
// edge; the cap is enforced here so the policy package stays free of storage
// concerns.
func HandleEdgeCreate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	edgeRepo := repository.GetGlobalRepositories().Edge

	if !tierpolicy.CanAccess(userCtx.Tier, tierpolicy.FeatureUnlimitedEdges) {
		count, err := edgeRepo.CountByUserID(userCtx.UserID)
		if err != nil {
			return apperr.Respond(c, err)
		}
		if count >= tierpolicy.FreeEdgeLimit {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "validation",
				"message": "free accounts are limited to one edge, upgrade to add more",
			})
		}
	}

	var req edgeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "invalid request body",
		})
	}

	edge := &models.Edge{
		UserID:      userCtx.UserID,
		Name:        req.Name,
		Description: req.Description,
		Timeframe:   req.Timeframe,
		Session:     req.Session,
		Pairs:       req.Pairs,
	}
	if err := edge.Validate(); err != nil {
		return apperr.Respond(c, err)
	}
	if err := edgeRepo.Create(edge); err != nil {
		return apperr.Respond(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

// HandleEdgeGet returns one edge by its public id.
func HandleEdgeGet(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	edge, err := repository.GetGlobalRepositories().Edge.GetByUUID(c.Params("uuid"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	if edge.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "notFound",
			"message": "edge not found",
		})
	}
	return c.JSON(edge)
}

// HandleEdgeUpdate updates an edge owned by the caller.
func HandleEdgeUpdate(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	edgeRepo := repository.GetGlobalRepositories().Edge

	edge, err := edgeRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	if edge.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "notFound",
			"message": "edge not found",
		})
	}

	var req edgeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation",
			"message": "invalid request body",
		})
	}

	edge.Name = req.Name
	edge.Description = req.Description
	edge.Timeframe = req.Timeframe
	edge.Session = req.Session
	edge.Pairs = req.Pairs
	edge.Archived = req.Archived

	if err := edge.Validate(); err != nil {
		return apperr.Respond(c, err)
	}
	if err := edgeRepo.Update(edge); err != nil {
		return apperr.Respond(c, err)
	}

	return c.JSON(edge)
}

// HandleEdgeDelete removes an edge owned by the caller.
func HandleEdgeDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	edgeRepo := repository.GetGlobalRepositories().Edge

	edge, err := edgeRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	if edge.UserID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "notFound",
			"message": "edge not found",
		})
	}

	if err := edgeRepo.Delete(edge.ID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
