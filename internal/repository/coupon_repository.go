package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/internal/service"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

// Constraint names from the coupons migration.
const (
	couponsCodeKey    = "coupons_code_key"
	couponsOwnerIDKey = "coupons_owner_id_key"
)

const couponColumns = `id::text, code, owner_id, display_name, follower_count, role, points,
	redemption_count, last_redeemed_at, has_redeemed_elsewhere, redeemed_coupon_code, created_at, updated_at`

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CouponRepository provides data access for coupons using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	var role string
	err := row.Scan(
		&c.ID,
		&c.Code,
		&c.OwnerID,
		&c.DisplayName,
		&c.FollowerCount,
		&role,
		&c.Points,
		&c.RedemptionCount,
		&c.LastRedeemedAt,
		&c.HasRedeemedElsewhere,
		&c.RedeemedCouponCode,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Role = model.Role(role)
	return &c, nil
}

// insertErr translates unique violations on coupons into service errors.
func insertErr(err error) error {
	if constraint, ok := database.UniqueViolation(err); ok {
		if constraint == couponsCodeKey {
			return service.ErrCouponCodeCollision
		}
		return service.ErrCouponExists
	}
	return fmt.Errorf("insert coupon: %w", err)
}

// Insert inserts a newly issued coupon.
// Returns service.ErrCouponExists if the owner already has a coupon and
// service.ErrCouponCodeCollision if the generated code is taken.
func (r *CouponRepository) Insert(ctx context.Context, coupon *model.Coupon) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (id, code, owner_id, display_name, follower_count, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		coupon.ID, coupon.Code, coupon.OwnerID, coupon.DisplayName, coupon.FollowerCount, string(coupon.Role),
	).Scan(&coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		return insertErr(err)
	}
	return nil
}

// InsertIfAbsent provisions a redeemer's coupon inside a redemption transaction.
// Returns false when a coupon for the owner already exists (e.g. created concurrently).
func (r *CouponRepository) InsertIfAbsent(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) (bool, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO coupons (id, code, owner_id, display_name, follower_count, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO NOTHING
		RETURNING created_at, updated_at`,
		coupon.ID, coupon.Code, coupon.OwnerID, coupon.DisplayName, coupon.FollowerCount, string(coupon.Role),
	).Scan(&coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, insertErr(err)
	}
	return true, nil
}

// GetByOwner retrieves the coupon owned by ownerID.
// Returns nil, nil if the coupon is not found (service layer handles this).
func (r *CouponRepository) GetByOwner(ctx context.Context, ownerID string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE owner_id = $1`

	coupon, err := scanCoupon(r.pool.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get coupon by owner %s: %w", ownerID, err)
	}
	return coupon, nil
}

// GetByOwnerForUpdate retrieves and row-locks the coupon owned by ownerID.
// Returns service.ErrCouponNotFound if it doesn't exist.
func (r *CouponRepository) GetByOwnerForUpdate(ctx context.Context, tx database.TxQuerier, ownerID string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE owner_id = $1 FOR UPDATE`

	coupon, err := scanCoupon(tx.QueryRow(ctx, query, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon for update %s: %w", ownerID, err)
	}
	return coupon, nil
}

// LockForRedemption row-locks the coupon identified by code and the coupon owned
// by redeemerID in a single statement. Rows are locked in id order so two
// redemptions crossing the same pair of coupons cannot deadlock.
// Either return value is nil when the corresponding row does not exist; both
// point to the same coupon when the redeemer owns the code.
func (r *CouponRepository) LockForRedemption(ctx context.Context, tx database.TxQuerier, code, redeemerID string) (target, redeemer *model.Coupon, err error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 OR owner_id = $2 ORDER BY id FOR UPDATE`

	rows, err := tx.Query(ctx, query, code, redeemerID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock coupons for redemption: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan locked coupon: %w", err)
		}
		if c.Code == code {
			target = c
		}
		if c.OwnerID == redeemerID {
			redeemer = c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate locked coupons: %w", err)
	}
	return target, redeemer, nil
}

// AwardOwner credits the coupon owner for a redemption and returns the new point total.
func (r *CouponRepository) AwardOwner(ctx context.Context, tx database.TxQuerier, code string, reward int, at time.Time) (int, error) {
	query := `UPDATE coupons
		SET points = points + $2, redemption_count = redemption_count + 1, last_redeemed_at = $3, updated_at = NOW()
		WHERE code = $1
		RETURNING points`

	var points int
	if err := tx.QueryRow(ctx, query, code, reward, at).Scan(&points); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, service.ErrCouponNotFound
		}
		return 0, fmt.Errorf("award owner of %s: %w", code, err)
	}
	return points, nil
}

// AwardRedeemer credits the redeemer and sets the write-once redeemed flag.
// Returns service.ErrAlreadyRedeemed when the flag was already set.
func (r *CouponRepository) AwardRedeemer(ctx context.Context, tx database.TxQuerier, ownerID, couponCode string, reward int) (int, error) {
	query := `UPDATE coupons
		SET points = points + $2, has_redeemed_elsewhere = TRUE, redeemed_coupon_code = $3, updated_at = NOW()
		WHERE owner_id = $1 AND has_redeemed_elsewhere = FALSE
		RETURNING points`

	var points int
	if err := tx.QueryRow(ctx, query, ownerID, reward, couponCode).Scan(&points); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, service.ErrAlreadyRedeemed
		}
		return 0, fmt.Errorf("award redeemer %s: %w", ownerID, err)
	}
	return points, nil
}

func couponFilterClause(f model.CouponFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Role != "" {
		args = append(args, string(f.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if f.MinFollowers > 0 {
		args = append(args, f.MinFollowers)
		conds = append(conds, fmt.Sprintf("follower_count >= $%d", len(args)))
	}
	if f.DisplayName != "" {
		args = append(args, "%"+escapeLike(f.DisplayName)+"%")
		conds = append(conds, fmt.Sprintf("display_name ILIKE $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of coupons matching the filter, newest first, and the total match count.
func (r *CouponRepository) List(ctx context.Context, f model.CouponFilter, page model.Page) ([]model.Coupon, int, error) {
	where, args := couponFilterClause(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM coupons`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM coupons%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		couponColumns, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	coupons := []model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate coupon rows: %w", err)
	}
	return coupons, total, nil
}

// Stats aggregates coupon totals and the most redeemed coupon.
func (r *CouponRepository) Stats(ctx context.Context) (*model.CouponStats, error) {
	var stats model.CouponStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE role = 'creator'),
			COUNT(*) FILTER (WHERE role = 'user'),
			COALESCE(SUM(redemption_count), 0)
		FROM coupons`,
	).Scan(&stats.TotalCoupons, &stats.Creators, &stats.Users, &stats.TotalRedemptions)
	if err != nil {
		return nil, fmt.Errorf("aggregate coupon stats: %w", err)
	}

	top, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY redemption_count DESC, points DESC LIMIT 1`))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("get most redeemed coupon: %w", err)
	default:
		stats.MostRedeemed = top
	}
	return &stats, nil
}

// Delete removes the coupon with the given id.
// Returns service.ErrCouponNotFound if nothing was deleted.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete coupon %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrCouponNotFound
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
