package service

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
)

// Kind classifies a business failure. The transport maps each kind to a status.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindConflict
	KindNotFound
	KindForbidden
	KindInvalidState
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a business failure with a machine kind and a human message.
// Sentinels below are compared by identity with errors.Is.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the kind of err, or 0 when err is not a business failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	// ErrInvalidRequest is returned when request data is nil or incomplete.
	ErrInvalidRequest = &Error{KindInvalidInput, "invalid request"}

	// ErrBelowFollowerThreshold is returned when a follower count is under the issuance floor.
	ErrBelowFollowerThreshold = &Error{KindInvalidInput, "minimum 1000 followers required"}

	// ErrFollowerCountTooLarge is returned when a follower count does not fit the store.
	ErrFollowerCountTooLarge = &Error{KindInvalidInput, "follower count must be at most 2147483647"}

	// ErrInvalidRole is returned for roles other than creator and user.
	ErrInvalidRole = &Error{KindInvalidInput, "role must be creator or user"}

	// ErrMissingNewUserInfo is returned when a redeemer without a coupon omits display name or follower count.
	ErrMissingNewUserInfo = &Error{KindInvalidInput, "display name and follower count are required for new users"}

	// ErrCouponExists is returned when the identity already owns a coupon.
	ErrCouponExists = &Error{KindConflict, "user already has a coupon"}

	// ErrCouponCodeCollision is returned when a generated coupon code is already taken.
	ErrCouponCodeCollision = &Error{KindConflict, "coupon code collision, please retry"}

	// ErrCouponNotFound is returned when no coupon matches the code, owner or id.
	ErrCouponNotFound = &Error{KindNotFound, "coupon not found"}

	// ErrSelfRedemption is returned when the redeemer owns the coupon.
	ErrSelfRedemption = &Error{KindForbidden, "cannot redeem your own coupon"}

	// ErrAlreadyRedeemed is returned when the redeemer has redeemed a coupon before.
	ErrAlreadyRedeemed = &Error{KindForbidden, "you have already redeemed a coupon before, each user can only redeem one coupon"}

	// ErrRoleMismatch is returned when coupon owner and redeemer have different roles.
	ErrRoleMismatch = &Error{KindForbidden, "creator and redeemer must have the same role"}
)

var (
	// ErrInvalidMaxUses is returned when maxUses is below 1.
	ErrInvalidMaxUses = &Error{KindInvalidInput, "max uses must be at least 1"}

	// ErrInvalidExpiryDays is returned when expiryDays is below 1.
	ErrInvalidExpiryDays = &Error{KindInvalidInput, "expiry days must be at least 1"}

	// ErrMaxUsesTooLarge is returned when maxUses does not fit the store.
	ErrMaxUsesTooLarge = &Error{KindInvalidInput, "max uses must be at most 2147483647"}

	// ErrExpiryDaysTooLarge is returned when expiryDays exceeds policy.MaxExpiryDays.
	ErrExpiryDaysTooLarge = &Error{KindInvalidInput, "expiry days must be at most 36500"}

	// ErrAccessCodeExists is returned when an access code with the same code already exists.
	ErrAccessCodeExists = &Error{KindConflict, "access code already exists"}

	// ErrAccessCodeNotFound is returned when no access code matches.
	ErrAccessCodeNotFound = &Error{KindNotFound, "access code not found"}

	// ErrAccessCodeExpired is returned when redeeming an expired access code.
	ErrAccessCodeExpired = &Error{KindForbidden, "access code has expired"}

	// ErrAccessCodeInactive is returned when redeeming a deactivated access code.
	ErrAccessCodeInactive = &Error{KindForbidden, "access code is inactive"}

	// ErrAccessCodeExhausted is returned when the access code reached its usage limit.
	ErrAccessCodeExhausted = &Error{KindForbidden, "access code has reached maximum usage limit"}

	// ErrAccessCodeAlreadyUsed is returned when the user already redeemed this access code.
	ErrAccessCodeAlreadyUsed = &Error{KindForbidden, "you have already used this access code"}

	// ErrReactivateExhausted is returned when reactivating a code whose quota is used up.
	ErrReactivateExhausted = &Error{KindInvalidState, "cannot reactivate: maximum usage limit reached"}

	// ErrReactivateExpired is returned when reactivating an expired code.
	ErrReactivateExpired = &Error{KindInvalidState, "cannot reactivate: access code has expired"}

	// ErrAccessCodeGeneration is returned when no free access code was found within the retry budget.
	ErrAccessCodeGeneration = &Error{KindConflict, "could not generate a unique access code"}
)

// ErrUnauthorized is returned by administrative routes without a valid admin credential.
var ErrUnauthorized = &Error{KindUnauthorized, "authentication required"}

// invalidReasonError maps a validation reason to its redemption error.
func invalidReasonError(reason model.InvalidReason) error {
	switch reason {
	case model.ReasonExpired:
		return ErrAccessCodeExpired
	case model.ReasonInactive:
		return ErrAccessCodeInactive
	case model.ReasonQuotaExhausted:
		return ErrAccessCodeExhausted
	default:
		return fmt.Errorf("unknown access code reason %q", reason)
	}
}
