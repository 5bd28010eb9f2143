package model

import "time"

// AccessCode is a shared beta-gating token with a usage quota and an expiry.
type AccessCode struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	MaxUses     int       `json:"max_uses"`
	UsedCount   int       `json:"used_count"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccessCodeUsage records one user's redemption of an access code.
type AccessCodeUsage struct {
	Username   string    `json:"username"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// InvalidReason explains why an access code cannot be redeemed.
type InvalidReason string

const (
	ReasonExpired        InvalidReason = "expired"
	ReasonInactive       InvalidReason = "inactive"
	ReasonQuotaExhausted InvalidReason = "quota_exhausted"
)

// ValidationResult is the outcome of a read-only access code check.
type ValidationResult struct {
	Valid         bool          `json:"valid"`
	Reason        InvalidReason `json:"reason,omitempty"`
	Description   string        `json:"description,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	RemainingUses int           `json:"remaining_uses,omitempty"`
	UsedCount     int           `json:"used_count,omitempty"`
}

// AccessCodeRedemption is returned by a successful access code redemption.
type AccessCodeRedemption struct {
	Code          string `json:"code"`
	Description   string `json:"description"`
	Active        bool   `json:"active"`
	UsedCount     int    `json:"used_count"`
	RemainingUses int    `json:"remaining_uses"`
}

// UserAccessCode is an access code a user has redeemed, annotated with its current validity.
type UserAccessCode struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	ExpiresAt   time.Time `json:"expires_at"`
	RedeemedAt  time.Time `json:"redeemed_at"`
	IsValid     bool      `json:"is_valid"`
}

// UserAccessSummary answers whether a user has (still valid) beta access.
type UserAccessSummary struct {
	Username          string           `json:"username"`
	HasUsedAccessCode bool             `json:"has_used_access_code"`
	HasValidAccess    bool             `json:"has_valid_access"`
	ValidAccessCode   *string          `json:"valid_access_code"`
	Codes             []UserAccessCode `json:"codes"`
}

// AccessCodeUsageStats are derived figures shown on the admin detail view.
type AccessCodeUsageStats struct {
	UsagePercentage float64 `json:"usage_percentage"`
	IsExpired       bool    `json:"is_expired"`
	IsUsable        bool    `json:"is_usable"`
	RemainingUses   int     `json:"remaining_uses"`
	DaysUntilExpiry int     `json:"days_until_expiry"`
}

// AccessCodeDetail is an access code with its redemptions and usage stats.
type AccessCodeDetail struct {
	AccessCode
	UsedBy []AccessCodeUsage     `json:"used_by"`
	Stats  AccessCodeUsageStats `json:"stats"`
}

// CreateAccessCodeRequest is the DTO for creating an access code.
type CreateAccessCodeRequest struct {
	Description string `json:"description" validate:"omitempty,max=500"`
	MaxUses     *int   `json:"max_uses" validate:"required,lte=2147483647"`
	ExpiryDays  *int   `json:"expiry_days" validate:"required,lte=36500"`
}

// RedeemAccessCodeRequest is the DTO for redeeming an access code.
type RedeemAccessCodeRequest struct {
	Code     string `json:"code" validate:"required,notblank,len=6,alnumupper"`
	Username string `json:"username" validate:"required,notblank,max=255"`
}

// AccessCodeFilter narrows the admin access code listing. Nil pointers mean "any".
type AccessCodeFilter struct {
	Active  *bool
	Expired *bool
	Code    string
}

// AccessCodeStats summarises the access code table for administrators.
type AccessCodeStats struct {
	TotalAccessCodes     int         `json:"total_access_codes"`
	ActiveAccessCodes    int         `json:"active_access_codes"`
	ExpiredAccessCodes   int         `json:"expired_access_codes"`
	FullyUsedAccessCodes int         `json:"fully_used_access_codes"`
	TotalUsages          int         `json:"total_usages"`
	MostUsed             *AccessCode `json:"most_used"`
}
