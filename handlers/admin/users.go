package admin

import (
	"context"
	"strings"
	"time"

	"huntparty/services"
	"huntparty/store"
	"huntparty/utils"

	"github.com/gofiber/fiber/v2"
)

var (
	users  store.Users
	engine *services.Engine
)

// Init wires the admin handlers.
func Init(st store.Users, e *services.Engine) {
	users = st
	engine = e
}

type AdjustPointsRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// GetUser returns a single user by ID
func GetUser(c *fiber.Ctx) error {
	id, err := utils.ParseUintParam(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	user, err := users.GetUser(ctx, id)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": user})
}

// AdjustPoints applies a corrective point change. It shows up in the party
// feed and leaderboard like any other change but does not extend a streak.
// POST /api/admin/users/:id/points
func AdjustPoints(c *fiber.Ctx) error {
	id, err := utils.ParseUintParam(c, "id")
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	var req AdjustPointsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, "Invalid request body")
	}

	outcome, err := engine.AdjustPoints(c.UserContext(), id, req.Delta, strings.TrimSpace(req.Reason))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "outcome": outcome})
}
