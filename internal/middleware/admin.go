// Package middleware holds the fiber middleware specific to this service.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/fairyhunter13/referral-coupon-service/internal/service"
)

// Admin credential locations and the local the identity is stored under.
const (
	AdminKeyHeader = "X-Admin-Key"
	AdminKeyQuery  = "adminKey"
	AdminLocalKey  = "admin_id"
)

// BcryptCost is used when hashing new admin keys.
const BcryptCost = 12

// HashAdminKey returns the bcrypt hash to configure as ADMIN_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AdminAuth rejects requests whose admin key does not match keyHash.
// The key is read from the X-Admin-Key header, falling back to the adminKey query parameter.
// With no hash configured every administrative request fails with 500.
func AdminAuth(keyHash string) fiber.Handler {
	hash := []byte(keyHash)

	return func(c *fiber.Ctx) error {
		if len(hash) == 0 {
			log.Error().Str("path", c.Path()).Msg("admin route called but ADMIN_KEY_HASH is not configured")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "admin authentication is not configured"})
		}

		key := c.Get(AdminKeyHeader)
		if key == "" {
			key = c.Query(AdminKeyQuery)
		}
		if key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
			log.Warn().
				Str("request_id", c.GetRespHeader("X-Request-ID")).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Msg("admin authentication failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": service.ErrUnauthorized.Error(),
				"kind":  service.KindUnauthorized.String(),
			})
		}

		c.Locals(AdminLocalKey, "admin")
		return c.Next()
	}
}
