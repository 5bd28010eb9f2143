package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/internal/service"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

const accessCodeColumns = `id::text, code, description, active, max_uses, used_count, expires_at, created_by, created_at, updated_at`

// AccessCodeRepository provides data access for access codes and their usages using pgx.
type AccessCodeRepository struct {
	pool PoolInterface
}

// NewAccessCodeRepository creates a new AccessCodeRepository with the given pool.
func NewAccessCodeRepository(pool *pgxpool.Pool) *AccessCodeRepository {
	return &AccessCodeRepository{pool: pool}
}

// NewAccessCodeRepositoryWithPool creates a new AccessCodeRepository with a custom pool interface.
// This is primarily used for testing.
func NewAccessCodeRepositoryWithPool(pool PoolInterface) *AccessCodeRepository {
	return &AccessCodeRepository{pool: pool}
}

func scanAccessCode(row pgx.Row) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := row.Scan(
		&ac.ID,
		&ac.Code,
		&ac.Description,
		&ac.Active,
		&ac.MaxUses,
		&ac.UsedCount,
		&ac.ExpiresAt,
		&ac.CreatedBy,
		&ac.CreatedAt,
		&ac.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

// Insert inserts a new access code.
// Returns service.ErrAccessCodeExists if the code is already taken.
func (r *AccessCodeRepository) Insert(ctx context.Context, ac *model.AccessCode) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO access_codes (id, code, description, active, max_uses, expires_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		ac.ID, ac.Code, ac.Description, ac.Active, ac.MaxUses, ac.ExpiresAt, ac.CreatedBy,
	).Scan(&ac.CreatedAt, &ac.UpdatedAt)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return service.ErrAccessCodeExists
		}
		return fmt.Errorf("insert access code: %w", err)
	}
	return nil
}

// Exists reports whether an access code with the given code exists.
func (r *AccessCodeRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM access_codes WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check access code %s: %w", code, err)
	}
	return exists, nil
}

// GetByCode retrieves an access code by its code.
// Returns nil, nil if the access code is not found (service layer handles this).
func (r *AccessCodeRepository) GetByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	ac, err := scanAccessCode(r.pool.QueryRow(ctx, `SELECT `+accessCodeColumns+` FROM access_codes WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get access code %s: %w", code, err)
	}
	return ac, nil
}

// GetForUpdate retrieves an access code with a row lock (SELECT FOR UPDATE).
// Returns service.ErrAccessCodeNotFound if the access code doesn't exist.
func (r *AccessCodeRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error) {
	ac, err := scanAccessCode(tx.QueryRow(ctx, `SELECT `+accessCodeColumns+` FROM access_codes WHERE code = $1 FOR UPDATE`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrAccessCodeNotFound
		}
		return nil, fmt.Errorf("get access code for update %s: %w", code, err)
	}
	return ac, nil
}

// InsertUsage records that username redeemed code.
// Returns service.ErrAccessCodeAlreadyUsed if the user already redeemed it.
func (r *AccessCodeRepository) InsertUsage(ctx context.Context, tx database.TxQuerier, code, username string, at time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO access_code_usages (code, username, redeemed_at) VALUES ($1, $2, $3)`,
		code, username, at)
	if err != nil {
		if _, ok := database.UniqueViolation(err); ok {
			return service.ErrAccessCodeAlreadyUsed
		}
		return fmt.Errorf("insert access code usage: %w", err)
	}
	return nil
}

// IncrementUsage bumps used_count by one and clears active in the same statement
// when the increment reaches max_uses. Returns service.ErrAccessCodeExhausted when
// no use is left.
func (r *AccessCodeRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error) {
	query := `UPDATE access_codes
		SET used_count = used_count + 1,
			active = CASE WHEN used_count + 1 >= max_uses THEN FALSE ELSE active END,
			updated_at = NOW()
		WHERE code = $1 AND used_count < max_uses
		RETURNING ` + accessCodeColumns

	ac, err := scanAccessCode(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrAccessCodeExhausted
		}
		return nil, fmt.Errorf("increment usage for %s: %w", code, err)
	}
	return ac, nil
}

// Deactivate clears the active flag.
// Returns service.ErrAccessCodeNotFound if the access code doesn't exist.
func (r *AccessCodeRepository) Deactivate(ctx context.Context, code string) error {
	return setActive(ctx, r.pool, code, false)
}

// Activate sets the active flag inside a transaction holding the row lock.
func (r *AccessCodeRepository) Activate(ctx context.Context, tx database.TxQuerier, code string) error {
	return setActive(ctx, tx, code, true)
}

func setActive(ctx context.Context, q database.TxQuerier, code string, active bool) error {
	tag, err := q.Exec(ctx, `UPDATE access_codes SET active = $2, updated_at = NOW() WHERE code = $1`, code, active)
	if err != nil {
		return fmt.Errorf("set active=%t for %s: %w", active, code, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAccessCodeNotFound
	}
	return nil
}

// Delete removes an access code and, by cascade, its usages.
// Returns service.ErrAccessCodeNotFound if nothing was deleted.
func (r *AccessCodeRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_codes WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete access code %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrAccessCodeNotFound
	}
	return nil
}

// GetUsages lists who redeemed an access code, in redemption order.
// Returns an empty slice (not nil) when nobody has.
func (r *AccessCodeRepository) GetUsages(ctx context.Context, code string) ([]model.AccessCodeUsage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT username, redeemed_at FROM access_code_usages WHERE code = $1 ORDER BY redeemed_at, id`, code)
	if err != nil {
		return nil, fmt.Errorf("get usages for %s: %w", code, err)
	}
	defer rows.Close()

	usages := []model.AccessCodeUsage{}
	for rows.Next() {
		var u model.AccessCodeUsage
		if err := rows.Scan(&u.Username, &u.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan access code usage: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return usages, nil
}

// GetByUser lists the access codes username redeemed, oldest redemption first.
// IsValid is left for the caller to compute.
func (r *AccessCodeRepository) GetByUser(ctx context.Context, username string) ([]model.UserAccessCode, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.code, a.description, a.active, a.expires_at, u.redeemed_at
		FROM access_code_usages u
		JOIN access_codes a ON a.code = u.code
		WHERE u.username = $1
		ORDER BY u.redeemed_at, u.id`, username)
	if err != nil {
		return nil, fmt.Errorf("get access codes for user %s: %w", username, err)
	}
	defer rows.Close()

	codes := []model.UserAccessCode{}
	for rows.Next() {
		var c model.UserAccessCode
		if err := rows.Scan(&c.Code, &c.Description, &c.Active, &c.ExpiresAt, &c.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan user access code: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user access code rows: %w", err)
	}
	return codes, nil
}

func accessCodeFilterClause(f model.AccessCodeFilter, now time.Time) (string, []any) {
	var conds []string
	var args []any
	if f.Active != nil {
		args = append(args, *f.Active)
		conds = append(conds, fmt.Sprintf("active = $%d", len(args)))
	}
	if f.Expired != nil {
		args = append(args, now)
		if *f.Expired {
			conds = append(conds, fmt.Sprintf("expires_at < $%d", len(args)))
		} else {
			conds = append(conds, fmt.Sprintf("expires_at > $%d", len(args)))
		}
	}
	if f.Code != "" {
		args = append(args, "%"+escapeLike(f.Code)+"%")
		conds = append(conds, fmt.Sprintf("code ILIKE $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of access codes matching the filter, newest first, and the total match count.
func (r *AccessCodeRepository) List(ctx context.Context, f model.AccessCodeFilter, page model.Page, now time.Time) ([]model.AccessCode, int, error) {
	where, args := accessCodeFilterClause(f, now)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM access_codes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count access codes: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM access_codes%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		accessCodeColumns, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list access codes: %w", err)
	}
	defer rows.Close()

	codes := []model.AccessCode{}
	for rows.Next() {
		ac, err := scanAccessCode(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan access code: %w", err)
		}
		codes = append(codes, *ac)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate access code rows: %w", err)
	}
	return codes, total, nil
}

// Stats aggregates access code totals and the most used code.
func (r *AccessCodeRepository) Stats(ctx context.Context, now time.Time) (*model.AccessCodeStats, error) {
	var stats model.AccessCodeStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COUNT(*) FILTER (WHERE active AND expires_at > $1),
			COUNT(*) FILTER (WHERE expires_at < $1),
			COUNT(*) FILTER (WHERE used_count >= max_uses),
			COALESCE(SUM(used_count), 0)
		FROM access_codes`, now,
	).Scan(&stats.TotalAccessCodes, &stats.ActiveAccessCodes, &stats.ExpiredAccessCodes,
		&stats.FullyUsedAccessCodes, &stats.TotalUsages)
	if err != nil {
		return nil, fmt.Errorf("aggregate access code stats: %w", err)
	}

	top, err := scanAccessCode(r.pool.QueryRow(ctx,
		`SELECT `+accessCodeColumns+` FROM access_codes ORDER BY used_count DESC, created_at DESC LIMIT 1`))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("get most used access code: %w", err)
	default:
		stats.MostUsed = top
	}
	return &stats, nil
}
