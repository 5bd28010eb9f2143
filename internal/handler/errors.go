package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/referral-coupon-service/internal/service"
)

// statusFor maps a business failure kind to its HTTP status.
// Anything without a kind is an infrastructure failure.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput, service.KindInvalidState:
		return fiber.StatusBadRequest
	case service.KindConflict:
		return fiber.StatusConflict
	case service.KindNotFound:
		return fiber.StatusNotFound
	case service.KindForbidden:
		return fiber.StatusForbidden
	case service.KindUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func requestID(c *fiber.Ctx) string {
	return c.GetRespHeader("X-Request-ID")
}

// respondError writes err as a JSON error body. Business failures carry their
// message and kind; everything else is logged with kv as fields and hidden
// behind a generic message.
func respondError(c *fiber.Ctx, err error, msg string, kv ...any) error {
	if kind := service.KindOf(err); kind != 0 {
		return c.Status(statusFor(kind)).JSON(fiber.Map{"error": err.Error(), "kind": kind.String()})
	}

	event := log.Error().
		Err(err).
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path())
	if len(kv) > 0 {
		event = event.Fields(kv)
	}
	event.Msg(msg)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "request timed out"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

func invalidInput(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "kind": service.KindInvalidInput.String()})
}

// formatValidationError turns the first validator failure into a client message.
// Field names are the json names registered by internal/validator.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request"
	}

	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return "invalid request: " + field + " is required"
	case "notblank":
		return "invalid request: " + field + " cannot be whitespace only"
	case "max":
		return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
	case "len":
		return "invalid request: " + field + " must be exactly " + fe.Param() + " characters"
	case "gte":
		return "invalid request: " + field + " must be at least " + fe.Param()
	case "lte":
		return "invalid request: " + field + " must be at most " + fe.Param()
	case "oneof":
		return "invalid request: " + field + " must be one of: " + fe.Param()
	case "alnumupper":
		return "invalid request: " + field + " must contain only letters and digits"
	default:
		return "invalid request: " + field + " is invalid"
	}
}

// optionalBool parses a tri-state query flag: absent means nil.
func optionalBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
