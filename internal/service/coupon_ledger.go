package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/internal/policy"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

// CouponRepositoryInterface defines the interface for coupon data access.
type CouponRepositoryInterface interface {
	Insert(ctx context.Context, coupon *model.Coupon) error
	InsertIfAbsent(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) (bool, error)
	GetByOwner(ctx context.Context, ownerID string) (*model.Coupon, error)
	GetByOwnerForUpdate(ctx context.Context, tx database.TxQuerier, ownerID string) (*model.Coupon, error)
	LockForRedemption(ctx context.Context, tx database.TxQuerier, code, redeemerID string) (target, redeemer *model.Coupon, err error)
	AwardOwner(ctx context.Context, tx database.TxQuerier, code string, reward int, at time.Time) (int, error)
	AwardRedeemer(ctx context.Context, tx database.TxQuerier, ownerID, couponCode string, reward int) (int, error)
	List(ctx context.Context, f model.CouponFilter, page model.Page) ([]model.Coupon, int, error)
	Stats(ctx context.Context) (*model.CouponStats, error)
	Delete(ctx context.Context, id string) error
}

// RedemptionRepositoryInterface defines the interface for the redemption log.
type RedemptionRepositoryInterface interface {
	GetRedeemersByCoupon(ctx context.Context, couponCode string) ([]string, error)
	HasRedeemed(ctx context.Context, tx database.TxQuerier, redeemerID string) (bool, error)
	Insert(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error
}

// CodeGenerator produces coupon and access codes.
type CodeGenerator interface {
	CouponCode(seed string) string
	AccessCode() string
}

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CouponLedger owns coupon issuance and the redemption transaction.
type CouponLedger struct {
	pool        TxBeginner
	coupons     CouponRepositoryInterface
	redemptions RedemptionRepositoryInterface
	codes       CodeGenerator
	now         func() time.Time
}

// NewCouponLedger creates a new CouponLedger with the given pool and repositories.
func NewCouponLedger(pool *pgxpool.Pool, coupons CouponRepositoryInterface, redemptions RedemptionRepositoryInterface, codes CodeGenerator) *CouponLedger {
	return NewCouponLedgerWithTxBeginner(pool, coupons, redemptions, codes)
}

// NewCouponLedgerWithTxBeginner creates a CouponLedger with a custom TxBeginner.
// Primarily used for testing.
func NewCouponLedgerWithTxBeginner(pool TxBeginner, coupons CouponRepositoryInterface, redemptions RedemptionRepositoryInterface, codes CodeGenerator) *CouponLedger {
	return &CouponLedger{
		pool:        pool,
		coupons:     coupons,
		redemptions: redemptions,
		codes:       codes,
		now:         time.Now,
	}
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Issue creates the coupon for an identity.
// Returns:
//   - ErrInvalidRequest if the request is nil or incomplete
//   - ErrBelowFollowerThreshold if the follower count is under policy.MinFollowers
//   - ErrFollowerCountTooLarge if the follower count does not fit the store
//   - ErrInvalidRole for roles other than creator and user
//   - ErrCouponExists if the identity already owns a coupon
//   - ErrCouponCodeCollision if the generated code is taken
func (l *CouponLedger) Issue(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error) {
	if req == nil || req.FollowerCount == nil {
		return nil, ErrInvalidRequest
	}
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return nil, ErrInvalidRequest
	}
	if !policy.MeetsFollowerThreshold(*req.FollowerCount) {
		return nil, ErrBelowFollowerThreshold
	}
	if !policy.FitsStoredCount(*req.FollowerCount) {
		return nil, ErrFollowerCountTooLarge
	}
	role, ok := policy.ParseRole(req.Role)
	if !ok {
		return nil, ErrInvalidRole
	}

	coupon := &model.Coupon{
		ID:            uuid.NewString(),
		Code:          l.codes.CouponCode(ownerID),
		OwnerID:       ownerID,
		DisplayName:   strings.TrimSpace(req.DisplayName),
		FollowerCount: *req.FollowerCount,
		Role:          role,
	}
	if err := l.coupons.Insert(ctx, coupon); err != nil {
		if errors.Is(err, ErrCouponExists) || errors.Is(err, ErrCouponCodeCollision) {
			return nil, err
		}
		return nil, fmt.Errorf("insert coupon: %w", err)
	}
	return coupon, nil
}

// Lookup retrieves an identity's coupon with the list of its redeemers.
// Returns ErrCouponNotFound if the identity has no coupon.
func (l *CouponLedger) Lookup(ctx context.Context, ownerID string) (*model.CouponDetail, error) {
	coupon, err := l.coupons.GetByOwner(ctx, strings.TrimSpace(ownerID))
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}

	redeemedBy, err := l.redemptions.GetRedeemersByCoupon(ctx, coupon.Code)
	if err != nil {
		return nil, fmt.Errorf("get redemptions: %w", err)
	}

	return &model.CouponDetail{Coupon: *coupon, RedeemedBy: redeemedBy}, nil
}

// Redeem awards both parties for redeemerID redeeming someone else's coupon.
// Both coupons and the redemption record are written in one transaction with
// the two coupon rows locked, so a failure leaves neither side changed.
// Returns:
//   - ErrCouponNotFound if no coupon has the code
//   - ErrSelfRedemption if the redeemer owns the coupon
//   - ErrMissingNewUserInfo / ErrBelowFollowerThreshold when provisioning a new redeemer fails
//   - ErrAlreadyRedeemed if the redeemer has redeemed a coupon before
//   - ErrRoleMismatch if owner and redeemer roles differ
func (l *CouponLedger) Redeem(ctx context.Context, req *model.RedeemCouponRequest) (*model.RedemptionResult, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}
	redeemerID := strings.TrimSpace(req.RedeemerID)
	code := normalizeCouponCode(req.CouponCode)
	if redeemerID == "" || code == "" {
		return nil, ErrInvalidRequest
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	// 1. Lock target and redeemer rows
	target, redeemer, err := l.coupons.LockForRedemption(ctx, tx, code, redeemerID)
	if err != nil {
		return nil, fmt.Errorf("lock coupons: %w", err)
	}
	if target == nil {
		return nil, ErrCouponNotFound
	}
	if target.OwnerID == redeemerID {
		return nil, ErrSelfRedemption
	}

	// 2. Resolve or provision the redeemer
	newUser := false
	if redeemer == nil {
		redeemer, newUser, err = l.provisionRedeemer(ctx, tx, redeemerID, target.Role, req.NewUser())
		if err != nil {
			return nil, err
		}
	}
	if redeemer.HasRedeemedElsewhere {
		return nil, ErrAlreadyRedeemed
	}
	// The log outlives deleted coupons, so a re-issued identity is caught here.
	redeemed, err := l.redemptions.HasRedeemed(ctx, tx, redeemer.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("check redemption log: %w", err)
	}
	if redeemed {
		return nil, ErrAlreadyRedeemed
	}
	if !policy.SameRole(target.Role, redeemer.Role) {
		return nil, ErrRoleMismatch
	}

	// 3. Award both parties and record the redemption
	now := l.now()
	creatorPoints, err := l.coupons.AwardOwner(ctx, tx, target.Code, policy.RedemptionReward, now)
	if err != nil {
		return nil, fmt.Errorf("award owner: %w", err)
	}
	redeemerPoints, err := l.coupons.AwardRedeemer(ctx, tx, redeemer.OwnerID, target.Code, policy.RedemptionReward)
	if err != nil {
		if errors.Is(err, ErrAlreadyRedeemed) {
			return nil, ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("award redeemer: %w", err)
	}

	red := &model.Redemption{
		ID:          uuid.NewString(),
		CouponCode:  target.Code,
		OwnerID:     target.OwnerID,
		RedeemerID:  redeemer.OwnerID,
		Reward:      policy.RedemptionReward,
		NewRedeemer: newUser,
		CreatedAt:   now,
	}
	if err := l.redemptions.Insert(ctx, tx, red); err != nil {
		if errors.Is(err, ErrAlreadyRedeemed) {
			return nil, ErrAlreadyRedeemed
		}
		return nil, fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}

	result := &model.RedemptionResult{
		RedemptionID:   red.ID,
		CreatorPoints:  creatorPoints,
		RedeemerPoints: redeemerPoints,
		NewUser:        newUser,
	}
	if newUser {
		result.NewCouponCode = redeemer.Code
	}
	return result, nil
}

// provisionRedeemer creates the coupon of a redeemer that has none, with the
// role of the coupon being redeemed. If another request provisioned the same
// redeemer first, that coupon is locked and returned as an existing one.
func (l *CouponLedger) provisionRedeemer(ctx context.Context, tx database.TxQuerier, redeemerID string, role model.Role, info *model.NewUserInfo) (*model.Coupon, bool, error) {
	if info == nil || strings.TrimSpace(info.DisplayName) == "" {
		return nil, false, ErrMissingNewUserInfo
	}
	if !policy.MeetsFollowerThreshold(info.FollowerCount) {
		return nil, false, ErrBelowFollowerThreshold
	}
	if !policy.FitsStoredCount(info.FollowerCount) {
		return nil, false, ErrFollowerCountTooLarge
	}

	coupon := &model.Coupon{
		ID:            uuid.NewString(),
		Code:          l.codes.CouponCode(redeemerID),
		OwnerID:       redeemerID,
		DisplayName:   strings.TrimSpace(info.DisplayName),
		FollowerCount: info.FollowerCount,
		Role:          role,
	}
	created, err := l.coupons.InsertIfAbsent(ctx, tx, coupon)
	if err != nil {
		if errors.Is(err, ErrCouponCodeCollision) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("provision redeemer: %w", err)
	}
	if created {
		return coupon, true, nil
	}

	existing, err := l.coupons.GetByOwnerForUpdate(ctx, tx, redeemerID)
	if err != nil {
		return nil, false, fmt.Errorf("reload redeemer: %w", err)
	}
	return existing, false, nil
}

// List returns a page of coupons for administrators.
func (l *CouponLedger) List(ctx context.Context, f model.CouponFilter, page model.Page) (*model.ListResult[model.Coupon], error) {
	if f.Role != "" {
		if _, ok := policy.ParseRole(f.Role); !ok {
			return nil, ErrInvalidRole
		}
	}

	coupons, total, err := l.coupons.List(ctx, f, page)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return &model.ListResult[model.Coupon]{Items: coupons, Pagination: model.NewPagination(total, page)}, nil
}

// Stats returns coupon totals for administrators.
func (l *CouponLedger) Stats(ctx context.Context) (*model.CouponStats, error) {
	stats, err := l.coupons.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("coupon stats: %w", err)
	}
	return stats, nil
}

// Delete removes a coupon by id. Malformed ids are reported as not found.
func (l *CouponLedger) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrCouponNotFound
	}
	if err := l.coupons.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrCouponNotFound) {
			return ErrCouponNotFound
		}
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}
