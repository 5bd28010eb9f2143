package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/internal/service"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

// RedemptionPoolInterface defines the database operations needed by RedemptionRepository.
type RedemptionPoolInterface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedemptionRepository provides data access for the coupon redemption log using pgx.
type RedemptionRepository struct {
	pool RedemptionPoolInterface
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// NewRedemptionRepositoryWithPool creates a new RedemptionRepository with a custom pool interface.
// This is primarily used for testing.
func NewRedemptionRepositoryWithPool(pool RedemptionPoolInterface) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// GetRedeemersByCoupon retrieves the identities that redeemed a coupon, oldest first.
// On success, returns an empty slice (not nil) when nobody redeemed it.
// On error, returns nil and the wrapped error.
func (r *RedemptionRepository) GetRedeemersByCoupon(ctx context.Context, couponCode string) ([]string, error) {
	query := `SELECT redeemer_id FROM coupon_redemptions WHERE coupon_code = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, couponCode)
	if err != nil {
		return nil, fmt.Errorf("get redemptions for coupon %s: %w", couponCode, err)
	}
	defer rows.Close()

	var redeemers []string
	for rows.Next() {
		var redeemerID string
		if err := rows.Scan(&redeemerID); err != nil {
			return nil, fmt.Errorf("scan redemption redeemer_id: %w", err)
		}
		redeemers = append(redeemers, redeemerID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}

	if redeemers == nil {
		redeemers = []string{}
	}

	return redeemers, nil
}

// HasRedeemed reports whether redeemerID appears in the redemption log.
// The log is kept when coupons are deleted, so this covers identities whose
// coupon was removed and re-issued.
func (r *RedemptionRepository) HasRedeemed(ctx context.Context, tx database.TxQuerier, redeemerID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM coupon_redemptions WHERE redeemer_id = $1)`

	var exists bool
	if err := tx.QueryRow(ctx, query, redeemerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check redemptions for %s: %w", redeemerID, err)
	}
	return exists, nil
}

// Insert records a redemption within the redemption transaction.
// Returns service.ErrAlreadyRedeemed if the redeemer already has a redemption on record.
func (r *RedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error {
	query := `INSERT INTO coupon_redemptions (id, coupon_code, owner_id, redeemer_id, reward, new_redeemer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query, red.ID, red.CouponCode, red.OwnerID, red.RedeemerID, red.Reward, red.NewRedeemer, red.CreatedAt)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return service.ErrAlreadyRedeemed
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}
