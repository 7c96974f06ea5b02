// utils/http.go - Fiber request parsing and error responses
package utils

import (
	"errors"
	"strconv"

	"huntparty/logger"
	"huntparty/services"
	"huntparty/store"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a service error onto an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case services.IsValidation(err):
		return fiber.StatusBadRequest
	case services.IsNotFound(err), errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case services.IsConflict(err), errors.Is(err, store.ErrDuplicate):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorResponse writes the standard failure body. Internal errors are
// logged and replaced with a generic message.
func ErrorResponse(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Method(), c.Path(), err)
		message = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// JSONError sends a failure body with an explicit status.
func JSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// ParseUintParam reads a positive integer route parameter.
func ParseUintParam(c *fiber.Ctx, key string) (uint, error) {
	raw := c.Params(key)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return uint(id), nil
}

// QueryInt reads an integer query parameter, returning def when absent.
func QueryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return n, nil
}

// QueryUint reads an optional non-negative integer query parameter.
func QueryUint(c *fiber.Ctx, key string) (uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return uint(n), nil
}
