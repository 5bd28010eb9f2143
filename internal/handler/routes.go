package handler

import "github.com/gofiber/fiber/v2"

// Routes groups the handlers served by the API.
type Routes struct {
	Health       *HealthHandler
	Coupons      *CouponHandler
	AdminCoupons *AdminCouponHandler
	AccessCodes  *AccessCodeHandler
}

// Register mounts the public routes and, behind adminAuth, the administrative ones.
func (r Routes) Register(app fiber.Router, adminAuth fiber.Handler) {
	app.Get("/health", r.Health.Check)

	api := app.Group("/api")

	// Fixed segments are registered before their parameterised siblings.
	api.Post("/coupons", r.Coupons.IssueCoupon)
	api.Post("/coupons/redeem", r.Coupons.RedeemCoupon)
	api.Get("/coupons/:ownerId", r.Coupons.GetCoupon)

	api.Get("/access-codes/validate/:code", r.AccessCodes.ValidateAccessCode)
	api.Post("/access-codes/redeem", r.AccessCodes.RedeemAccessCode)
	api.Get("/access-codes/users/:username", r.AccessCodes.GetUserAccess)

	admin := api.Group("/admin", adminAuth)

	admin.Get("/coupons", r.AdminCoupons.ListCoupons)
	admin.Get("/coupons/stats", r.AdminCoupons.CouponStats)
	admin.Delete("/coupons/:id", r.AdminCoupons.DeleteCoupon)

	admin.Post("/access-codes", r.AccessCodes.CreateAccessCode)
	admin.Get("/access-codes", r.AccessCodes.ListAccessCodes)
	admin.Get("/access-codes/stats", r.AccessCodes.AccessCodeStats)
	admin.Get("/access-codes/:code", r.AccessCodes.GetAccessCode)
	admin.Patch("/access-codes/:code/deactivate", r.AccessCodes.DeactivateAccessCode)
	admin.Patch("/access-codes/:code/activate", r.AccessCodes.ActivateAccessCode)
	admin.Delete("/access-codes/:code", r.AccessCodes.DeleteAccessCode)
}
