package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/referral-coupon-service/internal/middleware"
	"github.com/fairyhunter13/referral-coupon-service/internal/model"
)

// AccessCodeLedgerInterface defines the access code operations behind the public and admin routes.
type AccessCodeLedgerInterface interface {
	Create(ctx context.Context, req *model.CreateAccessCodeRequest, createdBy string) (*model.AccessCode, error)
	Validate(ctx context.Context, code string) (*model.ValidationResult, error)
	Redeem(ctx context.Context, code, username string) (*model.AccessCodeRedemption, error)
	Deactivate(ctx context.Context, code string) error
	Reactivate(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
	UsageByUser(ctx context.Context, username string) (*model.UserAccessSummary, error)
	List(ctx context.Context, f model.AccessCodeFilter, page model.Page) (*model.ListResult[model.AccessCode], error)
	Get(ctx context.Context, code string) (*model.AccessCodeDetail, error)
	Stats(ctx context.Context) (*model.AccessCodeStats, error)
}

// AccessCodeHandler handles HTTP requests for access code operations.
type AccessCodeHandler struct {
	ledger    AccessCodeLedgerInterface
	validator *validator.Validate
}

// NewAccessCodeHandler creates a new AccessCodeHandler with the given ledger and validator.
func NewAccessCodeHandler(ledger AccessCodeLedgerInterface, v *validator.Validate) *AccessCodeHandler {
	return &AccessCodeHandler{ledger: ledger, validator: v}
}

// ValidateAccessCode handles GET /api/access-codes/validate/:code. It never changes state.
func (h *AccessCodeHandler) ValidateAccessCode(c *fiber.Ctx) error {
	code := c.Params("code")

	result, err := h.ledger.Validate(c.UserContext(), code)
	if err != nil {
		return respondError(c, err, "failed to validate access code", "code", code)
	}
	return c.JSON(result)
}

// RedeemAccessCode handles POST /api/access-codes/redeem.
func (h *AccessCodeHandler) RedeemAccessCode(c *fiber.Ctx) error {
	var req model.RedeemAccessCodeRequest

	if err := c.BodyParser(&req); err != nil {
		return invalidInput(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return invalidInput(c, formatValidationError(err))
	}

	result, err := h.ledger.Redeem(c.UserContext(), req.Code, req.Username)
	if err != nil {
		return respondError(c, err, "failed to redeem access code", "code", req.Code, "username", req.Username)
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("code", result.Code).
		Str("username", req.Username).
		Int("remaining_uses", result.RemainingUses).
		Msg("access code redeemed")

	return c.JSON(result)
}

// GetUserAccess handles GET /api/access-codes/users/:username.
func (h *AccessCodeHandler) GetUserAccess(c *fiber.Ctx) error {
	username := c.Params("username")

	summary, err := h.ledger.UsageByUser(c.UserContext(), username)
	if err != nil {
		return respondError(c, err, "failed to get user access codes", "username", username)
	}
	return c.JSON(summary)
}

// CreateAccessCode handles POST /api/admin/access-codes.
func (h *AccessCodeHandler) CreateAccessCode(c *fiber.Ctx) error {
	var req model.CreateAccessCodeRequest

	if err := c.BodyParser(&req); err != nil {
		return invalidInput(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return invalidInput(c, formatValidationError(err))
	}

	admin, _ := c.Locals(middleware.AdminLocalKey).(string)
	ac, err := h.ledger.Create(c.UserContext(), &req, admin)
	if err != nil {
		return respondError(c, err, "failed to create access code")
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("code", ac.Code).
		Int("max_uses", ac.MaxUses).
		Time("expires_at", ac.ExpiresAt).
		Msg("access code created")

	return c.Status(fiber.StatusCreated).JSON(ac)
}

// ListAccessCodes handles GET /api/admin/access-codes.
func (h *AccessCodeHandler) ListAccessCodes(c *fiber.Ctx) error {
	active, err := optionalBool(c, "active")
	if err != nil {
		return invalidInput(c, "invalid request: active must be true or false")
	}
	expired, err := optionalBool(c, "expired")
	if err != nil {
		return invalidInput(c, "invalid request: expired must be true or false")
	}

	filter := model.AccessCodeFilter{Active: active, Expired: expired, Code: c.Query("code")}
	page := model.NewPage(c.QueryInt("page", 1), c.QueryInt("limit", model.DefaultPageLimit))

	result, err := h.ledger.List(c.UserContext(), filter, page)
	if err != nil {
		return respondError(c, err, "failed to list access codes")
	}
	return c.JSON(result)
}

// AccessCodeStats handles GET /api/admin/access-codes/stats.
func (h *AccessCodeHandler) AccessCodeStats(c *fiber.Ctx) error {
	stats, err := h.ledger.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err, "failed to get access code stats")
	}
	return c.JSON(stats)
}

// GetAccessCode handles GET /api/admin/access-codes/:code.
func (h *AccessCodeHandler) GetAccessCode(c *fiber.Ctx) error {
	code := c.Params("code")

	detail, err := h.ledger.Get(c.UserContext(), code)
	if err != nil {
		return respondError(c, err, "failed to get access code", "code", code)
	}
	return c.JSON(detail)
}

// DeactivateAccessCode handles PATCH /api/admin/access-codes/:code/deactivate.
func (h *AccessCodeHandler) DeactivateAccessCode(c *fiber.Ctx) error {
	code := c.Params("code")

	if err := h.ledger.Deactivate(c.UserContext(), code); err != nil {
		return respondError(c, err, "failed to deactivate access code", "code", code)
	}

	log.Info().Str("request_id", requestID(c)).Str("code", code).Msg("access code deactivated")
	return c.JSON(fiber.Map{"code": code, "active": false})
}

// ActivateAccessCode handles PATCH /api/admin/access-codes/:code/activate.
func (h *AccessCodeHandler) ActivateAccessCode(c *fiber.Ctx) error {
	code := c.Params("code")

	if err := h.ledger.Reactivate(c.UserContext(), code); err != nil {
		return respondError(c, err, "failed to activate access code", "code", code)
	}

	log.Info().Str("request_id", requestID(c)).Str("code", code).Msg("access code reactivated")
	return c.JSON(fiber.Map{"code": code, "active": true})
}

// DeleteAccessCode handles DELETE /api/admin/access-codes/:code.
func (h *AccessCodeHandler) DeleteAccessCode(c *fiber.Ctx) error {
	code := c.Params("code")

	if err := h.ledger.Delete(c.UserContext(), code); err != nil {
		return respondError(c, err, "failed to delete access code", "code", code)
	}

	log.Info().Str("request_id", requestID(c)).Str("code", code).Msg("access code deleted")
	return c.SendStatus(fiber.StatusNoContent)
}
