// handlers/auth.go - Registration, login and the current user
package handlers

import (
	"errors"
	"strings"
	"time"

	"huntparty/logger"
	"huntparty/middleware"
	"huntparty/models"
	"huntparty/store"
	"huntparty/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type AuthResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token,omitempty"`
	User    UserInfo `json:"user"`
}

type UserInfo struct {
	ID             uint       `json:"id"`
	Username       string     `json:"username"`
	DisplayName    string     `json:"display_name"`
	IsAdmin        bool       `json:"is_admin"`
	TotalPoints    int        `json:"total_points"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastActivityAt *time.Time `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.Name(),
		IsAdmin:        u.IsAdmin,
		TotalPoints:    u.TotalPoints,
		CurrentStreak:  u.CurrentStreak,
		LongestStreak:  u.LongestStreak,
		LastActivityAt: u.LastActivityAt,
		CreatedAt:      u.CreatedAt,
	}
}

// Register creates an account
// POST /api/auth/register
func Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, "Invalid request body")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if len(req.Username) < 3 || len(req.Username) > 50 {
		return utils.JSONError(c, 400, "Username must be between 3 and 50 characters")
	}
	if len(req.Password) < 8 {
		return utils.JSONError(c, 400, "Password must be at least 8 characters")
	}
	if len(req.DisplayName) > 100 {
		return utils.JSONError(c, 400, "Display name must be at most 100 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	user := &models.User{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    string(hashed),
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := appStore.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.JSONError(c, 409, "Username already taken")
		}
		return utils.ErrorResponse(c, err)
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	logger.Info("registered user %d (%s)", user.ID, user.Username)
	return c.Status(201).JSON(AuthResponse{Success: true, Token: token, User: userInfo(user)})
}

// Login exchanges credentials for a token
// POST /api/auth/login
func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.JSONError(c, 400, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := appStore.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.JSONError(c, 401, "Invalid username or password")
		}
		return utils.ErrorResponse(c, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return utils.JSONError(c, 401, "Invalid username or password")
	}

	token, err := middleware.GenerateToken(user)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(AuthResponse{Success: true, Token: token, User: userInfo(user)})
}

// GetCurrentUser returns the caller's points and streak
// GET /api/users/me
func GetCurrentUser(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := appStore.GetUser(ctx, userID)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "user": userInfo(user)})
}
