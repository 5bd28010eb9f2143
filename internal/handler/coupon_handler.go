package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
)

// CouponLedgerInterface defines the coupon operations exposed to clients.
type CouponLedgerInterface interface {
	Issue(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error)
	Lookup(ctx context.Context, ownerID string) (*model.CouponDetail, error)
	Redeem(ctx context.Context, req *model.RedeemCouponRequest) (*model.RedemptionResult, error)
}

// CouponHandler handles HTTP requests for coupon operations.
type CouponHandler struct {
	ledger    CouponLedgerInterface
	validator *validator.Validate
}

// NewCouponHandler creates a new CouponHandler with the given ledger and validator.
func NewCouponHandler(ledger CouponLedgerInterface, v *validator.Validate) *CouponHandler {
	return &CouponHandler{ledger: ledger, validator: v}
}

// IssueCoupon handles POST /api/coupons requests to issue a coupon.
func (h *CouponHandler) IssueCoupon(c *fiber.Ctx) error {
	var req model.IssueCouponRequest

	if err := c.BodyParser(&req); err != nil {
		return invalidInput(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return invalidInput(c, formatValidationError(err))
	}

	coupon, err := h.ledger.Issue(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err, "failed to issue coupon", "owner_id", req.OwnerID)
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("owner_id", coupon.OwnerID).
		Str("role", string(coupon.Role)).
		Msg("coupon issued")

	return c.Status(fiber.StatusCreated).JSON(coupon)
}

// GetCoupon handles GET /api/coupons/:ownerId requests.
func (h *CouponHandler) GetCoupon(c *fiber.Ctx) error {
	ownerID := c.Params("ownerId")
	if ownerID == "" {
		return invalidInput(c, "invalid request: owner id is required")
	}

	detail, err := h.ledger.Lookup(c.UserContext(), ownerID)
	if err != nil {
		return respondError(c, err, "failed to get coupon", "owner_id", ownerID)
	}

	return c.JSON(detail)
}

// RedeemCoupon handles POST /api/coupons/redeem requests.
func (h *CouponHandler) RedeemCoupon(c *fiber.Ctx) error {
	var req model.RedeemCouponRequest

	if err := c.BodyParser(&req); err != nil {
		return invalidInput(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return invalidInput(c, formatValidationError(err))
	}

	result, err := h.ledger.Redeem(c.UserContext(), &req)
	if err != nil {
		return respondError(c, err, "failed to redeem coupon",
			"redeemer_id", req.RedeemerID, "coupon_code", req.CouponCode)
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("redeemer_id", req.RedeemerID).
		Str("coupon_code", req.CouponCode).
		Bool("new_user", result.NewUser).
		Msg("coupon redeemed")

	return c.JSON(result)
}
