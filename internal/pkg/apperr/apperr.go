package apperr

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Category is the coarse classification surfaced to API callers. Raw store
// and provider errors never leave the handler boundary.
type Category string

const (
	CategoryAuth       Category = "auth"
	CategoryValidation Category = "validation"
	CategoryNetwork    Category = "network"
	CategoryServer     Category = "server"
	CategoryNotFound   Category = "not_found"
	CategoryRateLimit  Category = "rate_limit"
)

// Postgres error codes we classify explicitly.
const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
)

// HTTPStatus maps a category to its response status.
func HTTPStatus(cat Category) int {
	switch cat {
	case CategoryAuth:
		return fiber.StatusUnauthorized
	case CategoryValidation:
		return fiber.StatusBadRequest
	case CategoryNetwork:
		return fiber.StatusServiceUnavailable
	case CategoryNotFound:
		return fiber.StatusNotFound
	case CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// Retryable reports whether client call sites may enqueue a retry.
// Only transient network failures qualify.
func Retryable(cat Category) bool {
	return cat == CategoryNetwork
}

// Classify buckets an error into a category. Store sentinels and Postgres
// codes are checked first, then known provider error text.
func Classify(err error) Category {
	if err == nil {
		return CategoryServer
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CategoryNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgFKViolation:
			return CategoryValidation
		}
		return CategoryServer
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid credentials"):
		return CategoryAuth
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return CategoryRateLimit
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "temporary failure"),
		strings.Contains(msg, "no such host"):
		return CategoryNetwork
	case strings.Contains(msg, "not found"):
		return CategoryNotFound
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "validation"):
		return CategoryValidation
	default:
		return CategoryServer
	}
}

// Message returns the user-safe text for a category.
func Message(cat Category) string {
	switch cat {
	case CategoryAuth:
		return "login required"
	case CategoryValidation:
		return "invalid request"
	case CategoryNetwork:
		return "service temporarily unavailable, please retry"
	case CategoryNotFound:
		return "resource not found"
	case CategoryRateLimit:
		return "too many requests"
	default:
		return "internal server error"
	}
}

// Respond writes the standard error envelope for err on c. The raw error is
// the caller's to log; only the category and safe message go on the wire.
func Respond(c *fiber.Ctx, err error) error {
	cat := Classify(err)
	return c.Status(HTTPStatus(cat)).JSON(fiber.Map{
		"error":     string(cat),
		"message":   Message(cat),
		"retryable": Retryable(cat),
	})
}
