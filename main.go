// main.go - huntparty API and live server
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"huntparty/announce"
	"huntparty/config"
	"huntparty/database"
	"huntparty/handlers"
	"huntparty/live"
	"huntparty/logger"
	"huntparty/middleware"
	"huntparty/services"
	"huntparty/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	cfg, envFileLoaded := config.Load()
	logger.SetDebug(cfg.DebugEnabled())
	if !envFileLoaded {
		logger.Warn(".env file not found, using system environment variables")
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration: %v", err)
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn("%s", warning)
	}

	if err := database.InitDB(cfg); err != nil {
		logger.Fatal("database: %v", err)
	}
	defer database.CloseDB()

	middleware.InitAuth(cfg.JWTSecret, cfg.JWTTTL)

	st := store.NewGormStore(database.GetDB())
	hub := live.NewHub()
	notifier := live.NewNotifier(hub, st, cfg.StoreTimeout)

	var announcer services.Announcer
	if cfg.AnnouncementsEnabled() {
		discord, err := announce.NewDiscord(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			logger.Warn("discord announcements disabled: %v", err)
		} else {
			announcer = discord
			logger.Info("discord announcements enabled for channel %s", cfg.DiscordChannelID)
		}
	}

	engine := services.NewEngine(st, services.EngineOptions{
		Publisher: notifier,
		Announcer: announcer,
		Timeout:   cfg.StoreTimeout,
	})
	parties := services.NewPartyService(st, hub, notifier)

	handlers.Init(handlers.Deps{
		Store:   st,
		Engine:  engine,
		Parties: parties,
		Hub:     hub,
		Live:    live.ServeOptions{SendBuffer: cfg.LiveSendBuffer, ResolveTimeout: cfg.StoreTimeout},
		Timeout: cfg.StoreTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generalLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
	generalLimiter.StartCleanup(ctx, 10*time.Minute, 30*time.Minute)
	authLimiter.StartCleanup(ctx, 10*time.Minute, 30*time.Minute)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler(cfg),
		BodyLimit:    1 * 1024 * 1024,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: !strings.Contains(cfg.CORSOrigins, "*"),
	}))
	app.Use(middleware.RateLimit(generalLimiter))

	handlers.RegisterRoutes(app, middleware.AuthRateLimit(authLimiter))

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown: %v", err)
		}
	}()

	logger.Success("HTTP server starting on port %s", cfg.Port)
	logger.Info("Environment: %s", cfg.AppEnv)
	logger.Info("Live updates at ws://localhost:%s/ws", cfg.Port)

	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("failed to start HTTP server: %v", err)
	}
	engine.Wait()
}

func customErrorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		} else {
			logger.Error("%s %s: %v", c.Method(), c.Path(), err)
		}

		// Don't expose internal errors in production
		if cfg.IsProduction() && code == 500 {
			message = "An error occurred. Please try again later."
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
