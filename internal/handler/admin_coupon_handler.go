package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
)

// CouponAdminInterface defines the coupon operations reserved for administrators.
type CouponAdminInterface interface {
	List(ctx context.Context, f model.CouponFilter, page model.Page) (*model.ListResult[model.Coupon], error)
	Stats(ctx context.Context) (*model.CouponStats, error)
	Delete(ctx context.Context, id string) error
}

// AdminCouponHandler handles the administrative coupon routes.
type AdminCouponHandler struct {
	ledger CouponAdminInterface
}

// NewAdminCouponHandler creates a new AdminCouponHandler.
func NewAdminCouponHandler(ledger CouponAdminInterface) *AdminCouponHandler {
	return &AdminCouponHandler{ledger: ledger}
}

// ListCoupons handles GET /api/admin/coupons.
func (h *AdminCouponHandler) ListCoupons(c *fiber.Ctx) error {
	minFollowers := c.QueryInt("min_followers", 0)
	if minFollowers < 0 {
		return invalidInput(c, "invalid request: min_followers must be at least 0")
	}

	filter := model.CouponFilter{
		Role:         model.Role(c.Query("role")),
		MinFollowers: minFollowers,
		DisplayName:  c.Query("display_name"),
	}
	page := model.NewPage(c.QueryInt("page", 1), c.QueryInt("limit", model.DefaultPageLimit))

	result, err := h.ledger.List(c.UserContext(), filter, page)
	if err != nil {
		return respondError(c, err, "failed to list coupons")
	}
	return c.JSON(result)
}

// CouponStats handles GET /api/admin/coupons/stats.
func (h *AdminCouponHandler) CouponStats(c *fiber.Ctx) error {
	stats, err := h.ledger.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err, "failed to get coupon stats")
	}
	return c.JSON(stats)
}

// DeleteCoupon handles DELETE /api/admin/coupons/:id.
func (h *AdminCouponHandler) DeleteCoupon(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.ledger.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err, "failed to delete coupon", "coupon_id", id)
	}

	log.Info().Str("request_id", requestID(c)).Str("coupon_id", id).Msg("coupon deleted")
	return c.SendStatus(fiber.StatusNoContent)
}
