package model

import "time"

// Role is the audience a coupon belongs to. Redemption only works between equal roles.
type Role string

const (
	RoleCreator Role = "creator"
	RoleUser    Role = "user"
)

// Coupon is a referral coupon owned by exactly one identity.
type Coupon struct {
	ID                   string     `json:"id"`
	Code                 string     `json:"code"`
	OwnerID              string     `json:"owner_id"`
	DisplayName          string     `json:"display_name"`
	FollowerCount        int        `json:"follower_count"`
	Role                 Role       `json:"role"`
	Points               int        `json:"points"`
	RedemptionCount      int        `json:"redemption_count"`
	LastRedeemedAt       *time.Time `json:"last_redeemed_at"`
	HasRedeemedElsewhere bool       `json:"has_redeemed_elsewhere"`
	RedeemedCouponCode   *string    `json:"redeemed_coupon_code"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Redemption is the audit record written with every successful coupon redemption.
type Redemption struct {
	ID          string    `json:"id"`
	CouponCode  string    `json:"coupon_code"`
	OwnerID     string    `json:"owner_id"`
	RedeemerID  string    `json:"redeemer_id"`
	Reward      int       `json:"reward"`
	NewRedeemer bool      `json:"new_redeemer"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedemptionResult is returned by a successful coupon redemption.
// NewCouponCode is only set when the redeemer was provisioned by this redemption.
type RedemptionResult struct {
	RedemptionID   string `json:"redemption_id"`
	CreatorPoints  int    `json:"creator_points"`
	RedeemerPoints int    `json:"redeemer_points"`
	NewUser        bool   `json:"new_user"`
	NewCouponCode  string `json:"new_coupon_code,omitempty"`
}

// IssueCouponRequest is the DTO for issuing a coupon.
type IssueCouponRequest struct {
	OwnerID       string `json:"owner_id" validate:"required,notblank,max=255"`
	DisplayName   string `json:"display_name" validate:"required,notblank,max=255"`
	FollowerCount *int   `json:"follower_count" validate:"required,gte=0,lte=2147483647"`
	Role          Role   `json:"role" validate:"omitempty,oneof=creator user"`
}

// NewUserInfo carries the details needed to provision a redeemer that has no coupon yet.
type NewUserInfo struct {
	DisplayName   string
	FollowerCount int
}

// RedeemCouponRequest is the DTO for redeeming someone else's coupon.
// DisplayName and FollowerCount are only required when the redeemer has no coupon.
type RedeemCouponRequest struct {
	RedeemerID    string `json:"redeemer_id" validate:"required,notblank,max=255"`
	CouponCode    string `json:"coupon_code" validate:"required,notblank,max=16"`
	DisplayName   string `json:"display_name" validate:"omitempty,max=255"`
	FollowerCount *int   `json:"follower_count" validate:"omitempty,gte=0,lte=2147483647"`
}

// NewUser returns the new-user details in the request, or nil when they are incomplete.
func (r *RedeemCouponRequest) NewUser() *NewUserInfo {
	if r.DisplayName == "" || r.FollowerCount == nil {
		return nil
	}
	return &NewUserInfo{DisplayName: r.DisplayName, FollowerCount: *r.FollowerCount}
}

// CouponFilter narrows the admin coupon listing.
type CouponFilter struct {
	Role         Role
	MinFollowers int
	DisplayName  string
}

// CouponStats summarises the coupon table for administrators.
type CouponStats struct {
	TotalCoupons     int     `json:"total_coupons"`
	Creators         int     `json:"creators"`
	Users            int     `json:"users"`
	TotalRedemptions int     `json:"total_redemptions"`
	MostRedeemed     *Coupon `json:"most_redeemed"`
}

// CouponDetail is a coupon together with the identities that redeemed it.
type CouponDetail struct {
	Coupon
	RedeemedBy []string `json:"redeemed_by"`
}
