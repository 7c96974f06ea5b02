// handlers/handlers.go - Shared handler state and route table
package handlers

import (
	"context"
	"time"

	"huntparty/handlers/admin"
	"huntparty/live"
	"huntparty/middleware"
	"huntparty/services"
	"huntparty/store"

	"github.com/gofiber/fiber/v2"
)

type Deps struct {
	Store   store.Store
	Engine  *services.Engine
	Parties *services.PartyService
	Hub     *live.Hub
	Live    live.ServeOptions
	// Timeout bounds read-only store work per request.
	Timeout time.Duration
}

var (
	appStore     store.Store
	engine       *services.Engine
	partyService *services.PartyService
	hub          *live.Hub
	liveOptions  live.ServeOptions
	queryTimeout = 5 * time.Second
)

// Init wires the handler package. It must run before RegisterRoutes.
func Init(deps Deps) {
	if deps.Store == nil || deps.Engine == nil || deps.Parties == nil || deps.Hub == nil {
		panic("handlers.Init: missing dependency")
	}
	appStore = deps.Store
	engine = deps.Engine
	partyService = deps.Parties
	hub = deps.Hub
	liveOptions = deps.Live
	if deps.Timeout > 0 {
		queryTimeout = deps.Timeout
	}
	admin.Init(deps.Store, deps.Engine)
}

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), queryTimeout)
}

// RegisterRoutes mounts the REST API, the live socket and the health check.
// authLimit guards login and register; pass nil to disable it.
func RegisterRoutes(app *fiber.App, authLimit fiber.Handler) {
	api := app.Group("/api")

	authGroup := api.Group("/auth")
	if authLimit != nil {
		authGroup.Use(authLimit)
	}
	authGroup.Post("/register", Register)
	authGroup.Post("/login", Login)

	userGroup := api.Group("/users", middleware.AuthMiddleware)
	userGroup.Get("/me", GetCurrentUser)

	partyGroup := api.Group("/parties", middleware.AuthMiddleware)
	partyGroup.Post("/", CreateParty)
	partyGroup.Post("/join", JoinParty)
	partyGroup.Post("/leave", LeaveParty)
	partyGroup.Get("/current", GetCurrentParty)
	partyGroup.Get("/current/snapshot", GetSnapshot)
	partyGroup.Get("/:id/leaderboard", GetPartyLeaderboard)
	partyGroup.Get("/:id/rivalry", GetPartyRivalry)
	partyGroup.Get("/:id/activity", GetPartyActivity)

	appGroup := api.Group("/applications", middleware.AuthMiddleware)
	appGroup.Post("/", CreateApplication)
	appGroup.Get("/", ListApplications)
	appGroup.Put("/:id/status", UpdateApplicationStatus)

	adminGroup := api.Group("/admin", middleware.AuthMiddleware, middleware.AdminAuthMiddleware)
	adminGroup.Get("/users/:id", admin.GetUser)
	adminGroup.Post("/users/:id/points", admin.AdjustPoints)

	app.Get("/ws", middleware.WebSocketAuthMiddleware, LiveSocket())

	app.Get("/health", Health)
}

// Health reports liveness and the number of open live connections.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": hub.ConnectionCount(),
	})
}
