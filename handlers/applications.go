// handlers/applications.go - Application logging and status updates
package handlers

import (
	"time"

	"huntparty/middleware"
	"huntparty/models"
	"huntparty/utils"

	"github.com/gofiber/fiber/v2"
)

type CreateApplicationRequest struct {
	Company string `json:"company"`
	Role    string `json:"role"`
}

type UpdateStatusRequest struct {
	Status         models.ApplicationStatus `json:"status"`
	InterviewRound *int                     `json:"interview_round"`
}

// CreateApplication logs a new application and scores it
// POST /api/applications
func CreateApplication(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var req CreateApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, "Invalid request body")
	}

	outcome, err := engine.LogApplication(c.UserContext(), userID, req.Company, req.Role, time.Now().UTC())
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"success": true, "outcome": outcome})
}

// ListApplications returns the caller's applications
// GET /api/applications
func ListApplications(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	apps, err := appStore.ListApplications(ctx, userID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return c.JSON(fiber.Map{"success": true, "applications": apps})
}

// UpdateApplicationStatus moves an application through its lifecycle
// PUT /api/applications/:id/status
func UpdateApplicationStatus(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	appID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, "Invalid request body")
	}

	outcome, err := engine.UpdateApplicationStatus(c.UserContext(), userID, appID, req.Status, req.InterviewRound, time.Now().UTC())
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "outcome": outcome})
}
