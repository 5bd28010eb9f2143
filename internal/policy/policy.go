// Package policy holds the stateless rules shared by the coupon and access code ledgers.
package policy

import (
	"math"
	"time"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
)

const (
	// MinFollowers is the follower floor for issuing or provisioning a coupon.
	MinFollowers = 1000

	// RedemptionReward is the number of points awarded to both parties of a coupon redemption.
	RedemptionReward = 10

	// AccessCodeLength is the fixed length of access codes.
	AccessCodeLength = 6

	// DefaultAccessCodeDescription is used when an access code is created without a description.
	DefaultAccessCodeDescription = "Beta access code"

	// MaxStoredCount is the largest follower count or usage quota the INTEGER columns hold.
	MaxStoredCount = math.MaxInt32

	// MaxExpiryDays caps access code lifetimes at roughly a century.
	MaxExpiryDays = 36500
)

// MeetsFollowerThreshold reports whether followers is at least MinFollowers.
func MeetsFollowerThreshold(followers int) bool {
	return followers >= MinFollowers
}

// FitsStoredCount reports whether n can be persisted in a follower or quota column.
func FitsStoredCount(n int) bool {
	return n <= MaxStoredCount
}

// ParseRole maps raw input to a Role. Empty input defaults to RoleUser.
func ParseRole(raw model.Role) (model.Role, bool) {
	switch raw {
	case "":
		return model.RoleUser, true
	case model.RoleCreator, model.RoleUser:
		return raw, true
	default:
		return "", false
	}
}

// SameRole reports whether a coupon owner and a redeemer may be paired.
func SameRole(owner, redeemer model.Role) bool {
	return owner == redeemer
}

// IsExpired reports whether expiresAt lies in the past relative to now.
func IsExpired(expiresAt, now time.Time) bool {
	return expiresAt.Before(now)
}

// HasQuota reports whether an access code has uses left.
func HasQuota(ac *model.AccessCode) bool {
	return ac.UsedCount < ac.MaxUses
}

// ValidateAccessCode checks expiry, then the active flag, then the quota.
func ValidateAccessCode(ac *model.AccessCode, now time.Time) model.ValidationResult {
	switch {
	case IsExpired(ac.ExpiresAt, now):
		return model.ValidationResult{Valid: false, Reason: model.ReasonExpired}
	case !ac.Active:
		return model.ValidationResult{Valid: false, Reason: model.ReasonInactive}
	case !HasQuota(ac):
		return model.ValidationResult{Valid: false, Reason: model.ReasonQuotaExhausted}
	}

	expiresAt := ac.ExpiresAt
	return model.ValidationResult{
		Valid:         true,
		Description:   ac.Description,
		ExpiresAt:     &expiresAt,
		RemainingUses: ac.MaxUses - ac.UsedCount,
		UsedCount:     ac.UsedCount,
	}
}

// ReactivationBlock returns the reason an access code may not be reactivated, if any.
// Quota exhaustion is reported before expiry.
func ReactivationBlock(ac *model.AccessCode, now time.Time) (model.InvalidReason, bool) {
	if !HasQuota(ac) {
		return model.ReasonQuotaExhausted, true
	}
	if IsExpired(ac.ExpiresAt, now) {
		return model.ReasonExpired, true
	}
	return "", false
}

// IsCurrentlyValid is the per-user view of a redeemed code: active and not expired.
// Quota is not rechecked because exhausting it already clears the active flag.
func IsCurrentlyValid(active bool, expiresAt, now time.Time) bool {
	return active && !IsExpired(expiresAt, now)
}

// UsageStats derives the admin detail figures for an access code.
func UsageStats(ac *model.AccessCode, now time.Time) model.AccessCodeUsageStats {
	expired := IsExpired(ac.ExpiresAt, now)

	var pct float64
	if ac.MaxUses > 0 {
		pct = math.Round(float64(ac.UsedCount)/float64(ac.MaxUses)*10000) / 100
	}

	days := 0
	if !expired {
		days = int(math.Ceil(ac.ExpiresAt.Sub(now).Hours() / 24))
	}

	return model.AccessCodeUsageStats{
		UsagePercentage: pct,
		IsExpired:       expired,
		IsUsable:        ac.Active && !expired && HasQuota(ac),
		RemainingUses:   ac.MaxUses - ac.UsedCount,
		DaysUntilExpiry: days,
	}
}
