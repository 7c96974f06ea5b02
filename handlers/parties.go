// handlers/parties.go - Party membership and standings endpoints
package handlers

import (
	"huntparty/middleware"
	"huntparty/services"
	"huntparty/utils"

	"github.com/gofiber/fiber/v2"
)

type CreatePartyRequest struct {
	Name string `json:"name"`
}

type JoinPartyRequest struct {
	InviteCode string `json:"invite_code"`
}

// ================== MEMBERSHIP ==================

// CreateParty starts a party with the caller as creator
// POST /api/parties
func CreateParty(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var req CreatePartyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, "Invalid request body")
	}

	party, err := partyService.CreateParty(c.UserContext(), userID, req.Name)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"success": true, "party": party})
}

// JoinParty joins by invite code
// POST /api/parties/join
func JoinParty(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	var req JoinPartyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, "Invalid request body")
	}

	party, err := partyService.JoinParty(c.UserContext(), userID, req.InviteCode)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "party": party})
}

// LeaveParty leaves the caller's current party
// POST /api/parties/leave
func LeaveParty(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	if err := partyService.LeaveParty(c.UserContext(), userID); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetCurrentParty returns the caller's party and its members
// GET /api/parties/current
func GetCurrentParty(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	party, membership, err := partyService.CurrentParty(ctx, userID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	members, err := partyService.Members(ctx, party.ID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"party":      party,
		"membership": membership,
		"members":    members,
	})
}

// GetSnapshot returns everything a client loads before following live updates
// GET /api/parties/current/snapshot
func GetSnapshot(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	snapshot, err := partyService.Snapshot(ctx, userID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "snapshot": snapshot})
}

// ================== STANDINGS ==================

// memberParty resolves :id and checks the caller belongs to it.
func memberParty(c *fiber.Ctx) (userID, partyID uint, err error) {
	userID, err = middleware.GetUserID(c)
	if err != nil {
		return 0, 0, err
	}
	partyID, err = utils.ParseUintParam(c, "id")
	if err != nil {
		return 0, 0, err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	ok, err := partyService.IsActiveMember(ctx, userID, partyID)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, fiber.NewError(fiber.StatusForbidden, "not a member of this party")
	}
	return userID, partyID, nil
}

// GetPartyLeaderboard
// GET /api/parties/:id/leaderboard
func GetPartyLeaderboard(c *fiber.Ctx) error {
	_, partyID, err := memberParty(c)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	board, err := partyService.Leaderboard(ctx, partyID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "leaderboard": board})
}

// GetPartyRivalry returns the caller's rivals
// GET /api/parties/:id/rivalry
func GetPartyRivalry(c *fiber.Ctx) error {
	userID, partyID, err := memberParty(c)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	rivalry, err := partyService.Rivalry(ctx, partyID, userID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "rivalry": rivalry})
}

// GetPartyActivity pages the feed newest first
// GET /api/parties/:id/activity?limit=&before=
func GetPartyActivity(c *fiber.Ctx) error {
	_, partyID, err := memberParty(c)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	limit, err := utils.QueryInt(c, "limit", services.DefaultActivityLimit)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	before, err := utils.QueryUint(c, "before")
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := partyService.Activity(ctx, partyID, limit, before)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "activity": page})
}
