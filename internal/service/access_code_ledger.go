package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/internal/policy"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

// maxCodeAttempts bounds the generate-and-check loop in Create.
const maxCodeAttempts = 10

// AccessCodeRepositoryInterface defines the interface for access code data access.
type AccessCodeRepositoryInterface interface {
	Insert(ctx context.Context, ac *model.AccessCode) error
	Exists(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (*model.AccessCode, error)
	GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error)
	InsertUsage(ctx context.Context, tx database.TxQuerier, code, username string, at time.Time) error
	IncrementUsage(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error)
	Deactivate(ctx context.Context, code string) error
	Activate(ctx context.Context, tx database.TxQuerier, code string) error
	Delete(ctx context.Context, code string) error
	GetUsages(ctx context.Context, code string) ([]model.AccessCodeUsage, error)
	GetByUser(ctx context.Context, username string) ([]model.UserAccessCode, error)
	List(ctx context.Context, f model.AccessCodeFilter, page model.Page, now time.Time) ([]model.AccessCode, int, error)
	Stats(ctx context.Context, now time.Time) (*model.AccessCodeStats, error)
}

// AccessCodeLedger manages beta access codes and their per-user redemptions.
type AccessCodeLedger struct {
	pool  TxBeginner
	repo  AccessCodeRepositoryInterface
	codes CodeGenerator
	now   func() time.Time
}

// NewAccessCodeLedger creates a new AccessCodeLedger.
func NewAccessCodeLedger(pool *pgxpool.Pool, repo AccessCodeRepositoryInterface, codes CodeGenerator) *AccessCodeLedger {
	return NewAccessCodeLedgerWithTxBeginner(pool, repo, codes)
}

// NewAccessCodeLedgerWithTxBeginner creates an AccessCodeLedger with a custom TxBeginner.
// Primarily used for testing.
func NewAccessCodeLedgerWithTxBeginner(pool TxBeginner, repo AccessCodeRepositoryInterface, codes CodeGenerator) *AccessCodeLedger {
	return &AccessCodeLedger{
		pool:  pool,
		repo:  repo,
		codes: codes,
		now:   time.Now,
	}
}

func normalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create generates a fresh access code valid for req.ExpiryDays days.
// createdBy identifies the administrator and defaults to "admin".
func (l *AccessCodeLedger) Create(ctx context.Context, req *model.CreateAccessCodeRequest, createdBy string) (*model.AccessCode, error) {
	if req == nil || req.MaxUses == nil || req.ExpiryDays == nil {
		return nil, ErrInvalidRequest
	}
	if *req.MaxUses < 1 {
		return nil, ErrInvalidMaxUses
	}
	if !policy.FitsStoredCount(*req.MaxUses) {
		return nil, ErrMaxUsesTooLarge
	}
	if *req.ExpiryDays < 1 {
		return nil, ErrInvalidExpiryDays
	}
	if *req.ExpiryDays > policy.MaxExpiryDays {
		return nil, ErrExpiryDaysTooLarge
	}

	code, err := l.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = policy.DefaultAccessCodeDescription
	}
	if createdBy == "" {
		createdBy = "admin"
	}

	ac := &model.AccessCode{
		ID:          uuid.NewString(),
		Code:        code,
		Description: description,
		Active:      true,
		MaxUses:     *req.MaxUses,
		ExpiresAt:   l.now().AddDate(0, 0, *req.ExpiryDays),
		CreatedBy:   createdBy,
	}
	if err := l.repo.Insert(ctx, ac); err != nil {
		if errors.Is(err, ErrAccessCodeExists) {
			return nil, ErrAccessCodeExists
		}
		return nil, fmt.Errorf("insert access code: %w", err)
	}
	return ac, nil
}

func (l *AccessCodeLedger) uniqueCode(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code := l.codes.AccessCode()
		exists, err := l.repo.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check access code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrAccessCodeGeneration
}

// Validate reports whether an access code can currently be redeemed.
// It never changes state. Returns ErrAccessCodeNotFound for unknown codes.
func (l *AccessCodeLedger) Validate(ctx context.Context, code string) (*model.ValidationResult, error) {
	ac, err := l.repo.GetByCode(ctx, normalizeAccessCode(code))
	if err != nil {
		return nil, fmt.Errorf("get access code: %w", err)
	}
	if ac == nil {
		return nil, ErrAccessCodeNotFound
	}

	result := policy.ValidateAccessCode(ac, l.now())
	return &result, nil
}

// Redeem records username's use of an access code.
// The code row is locked for the whole check-and-increment, and the code is
// deactivated in the same statement that consumes its last use.
// Returns:
//   - ErrAccessCodeNotFound for unknown codes
//   - ErrAccessCodeExpired, ErrAccessCodeInactive or ErrAccessCodeExhausted when the code is unusable
//   - ErrAccessCodeAlreadyUsed if username already redeemed this code
func (l *AccessCodeLedger) Redeem(ctx context.Context, code, username string) (*model.AccessCodeRedemption, error) {
	code = normalizeAccessCode(code)
	username = strings.TrimSpace(username)
	if code == "" || username == "" {
		return nil, ErrInvalidRequest
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	ac, err := l.repo.GetForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, ErrAccessCodeNotFound) {
			return nil, ErrAccessCodeNotFound
		}
		return nil, fmt.Errorf("lock access code: %w", err)
	}

	now := l.now()
	if result := policy.ValidateAccessCode(ac, now); !result.Valid {
		return nil, invalidReasonError(result.Reason)
	}

	if err := l.repo.InsertUsage(ctx, tx, code, username, now); err != nil {
		if errors.Is(err, ErrAccessCodeAlreadyUsed) {
			return nil, ErrAccessCodeAlreadyUsed
		}
		return nil, fmt.Errorf("record access code usage: %w", err)
	}

	updated, err := l.repo.IncrementUsage(ctx, tx, code)
	if err != nil {
		if errors.Is(err, ErrAccessCodeExhausted) {
			return nil, ErrAccessCodeExhausted
		}
		return nil, fmt.Errorf("increment access code usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit access code redemption: %w", err)
	}

	return &model.AccessCodeRedemption{
		Code:          updated.Code,
		Description:   updated.Description,
		Active:        updated.Active,
		UsedCount:     updated.UsedCount,
		RemainingUses: updated.MaxUses - updated.UsedCount,
	}, nil
}

// Deactivate clears the active flag of an access code.
func (l *AccessCodeLedger) Deactivate(ctx context.Context, code string) error {
	if err := l.repo.Deactivate(ctx, normalizeAccessCode(code)); err != nil {
		if errors.Is(err, ErrAccessCodeNotFound) {
			return ErrAccessCodeNotFound
		}
		return fmt.Errorf("deactivate access code: %w", err)
	}
	return nil
}

// Reactivate sets the active flag again, unless the code is used up or expired.
func (l *AccessCodeLedger) Reactivate(ctx context.Context, code string) error {
	code = normalizeAccessCode(code)

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ac, err := l.repo.GetForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, ErrAccessCodeNotFound) {
			return ErrAccessCodeNotFound
		}
		return fmt.Errorf("lock access code: %w", err)
	}

	if reason, blocked := policy.ReactivationBlock(ac, l.now()); blocked {
		if reason == model.ReasonQuotaExhausted {
			return ErrReactivateExhausted
		}
		return ErrReactivateExpired
	}

	if err := l.repo.Activate(ctx, tx, code); err != nil {
		return fmt.Errorf("activate access code: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit access code activation: %w", err)
	}
	return nil
}

// Delete removes an access code together with its usage records.
func (l *AccessCodeLedger) Delete(ctx context.Context, code string) error {
	if err := l.repo.Delete(ctx, normalizeAccessCode(code)); err != nil {
		if errors.Is(err, ErrAccessCodeNotFound) {
			return ErrAccessCodeNotFound
		}
		return fmt.Errorf("delete access code: %w", err)
	}
	return nil
}

// UsageByUser lists the codes a user redeemed and whether any still grants access.
func (l *AccessCodeLedger) UsageByUser(ctx context.Context, username string) (*model.UserAccessSummary, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidRequest
	}

	codes, err := l.repo.GetByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user access codes: %w", err)
	}

	now := l.now()
	summary := &model.UserAccessSummary{
		Username:          username,
		HasUsedAccessCode: len(codes) > 0,
		Codes:             codes,
	}
	for i := range summary.Codes {
		c := &summary.Codes[i]
		c.IsValid = policy.IsCurrentlyValid(c.Active, c.ExpiresAt, now)
		if c.IsValid && summary.ValidAccessCode == nil {
			validCode := c.Code
			summary.ValidAccessCode = &validCode
			summary.HasValidAccess = true
		}
	}
	if summary.Codes == nil {
		summary.Codes = []model.UserAccessCode{}
	}
	return summary, nil
}

// List returns a page of access codes for administrators.
func (l *AccessCodeLedger) List(ctx context.Context, f model.AccessCodeFilter, page model.Page) (*model.ListResult[model.AccessCode], error) {
	f.Code = normalizeAccessCode(f.Code)

	codes, total, err := l.repo.List(ctx, f, page, l.now())
	if err != nil {
		return nil, fmt.Errorf("list access codes: %w", err)
	}
	return &model.ListResult[model.AccessCode]{Items: codes, Pagination: model.NewPagination(total, page)}, nil
}

// Get returns an access code with its redemptions and derived usage stats.
func (l *AccessCodeLedger) Get(ctx context.Context, code string) (*model.AccessCodeDetail, error) {
	ac, err := l.repo.GetByCode(ctx, normalizeAccessCode(code))
	if err != nil {
		return nil, fmt.Errorf("get access code: %w", err)
	}
	if ac == nil {
		return nil, ErrAccessCodeNotFound
	}

	usages, err := l.repo.GetUsages(ctx, ac.Code)
	if err != nil {
		return nil, fmt.Errorf("get access code usages: %w", err)
	}

	return &model.AccessCodeDetail{
		AccessCode: *ac,
		UsedBy:     usages,
		Stats:      policy.UsageStats(ac, l.now()),
	}, nil
}

// Stats returns access code totals for administrators.
func (l *AccessCodeLedger) Stats(ctx context.Context) (*model.AccessCodeStats, error) {
	stats, err := l.repo.Stats(ctx, l.now())
	if err != nil {
		return nil, fmt.Errorf("access code stats: %w", err)
	}
	return stats, nil
}
