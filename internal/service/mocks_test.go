package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/pkg/database"
)

// mockCouponRepository is a mock implementation of CouponRepositoryInterface.
type mockCouponRepository struct {
	insertFn              func(ctx context.Context, coupon *model.Coupon) error
	insertIfAbsentFn      func(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) (bool, error)
	getByOwnerFn          func(ctx context.Context, ownerID string) (*model.Coupon, error)
	getByOwnerForUpdateFn func(ctx context.Context, tx database.TxQuerier, ownerID string) (*model.Coupon, error)
	lockForRedemptionFn   func(ctx context.Context, tx database.TxQuerier, code, redeemerID string) (*model.Coupon, *model.Coupon, error)
	awardOwnerFn          func(ctx context.Context, tx database.TxQuerier, code string, reward int, at time.Time) (int, error)
	awardRedeemerFn       func(ctx context.Context, tx database.TxQuerier, ownerID, couponCode string, reward int) (int, error)
	listFn                func(ctx context.Context, f model.CouponFilter, page model.Page) ([]model.Coupon, int, error)
	statsFn               func(ctx context.Context) (*model.CouponStats, error)
	deleteFn              func(ctx context.Context, id string) error
}

func (m *mockCouponRepository) Insert(ctx context.Context, coupon *model.Coupon) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, coupon)
	}
	return nil
}

func (m *mockCouponRepository) InsertIfAbsent(ctx context.Context, tx database.TxQuerier, coupon *model.Coupon) (bool, error) {
	if m.insertIfAbsentFn != nil {
		return m.insertIfAbsentFn(ctx, tx, coupon)
	}
	return true, nil
}

func (m *mockCouponRepository) GetByOwner(ctx context.Context, ownerID string) (*model.Coupon, error) {
	if m.getByOwnerFn != nil {
		return m.getByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockCouponRepository) GetByOwnerForUpdate(ctx context.Context, tx database.TxQuerier, ownerID string) (*model.Coupon, error) {
	if m.getByOwnerForUpdateFn != nil {
		return m.getByOwnerForUpdateFn(ctx, tx, ownerID)
	}
	return nil, ErrCouponNotFound
}

func (m *mockCouponRepository) LockForRedemption(ctx context.Context, tx database.TxQuerier, code, redeemerID string) (*model.Coupon, *model.Coupon, error) {
	if m.lockForRedemptionFn != nil {
		return m.lockForRedemptionFn(ctx, tx, code, redeemerID)
	}
	return nil, nil, nil
}

func (m *mockCouponRepository) AwardOwner(ctx context.Context, tx database.TxQuerier, code string, reward int, at time.Time) (int, error) {
	if m.awardOwnerFn != nil {
		return m.awardOwnerFn(ctx, tx, code, reward, at)
	}
	return reward, nil
}

func (m *mockCouponRepository) AwardRedeemer(ctx context.Context, tx database.TxQuerier, ownerID, couponCode string, reward int) (int, error) {
	if m.awardRedeemerFn != nil {
		return m.awardRedeemerFn(ctx, tx, ownerID, couponCode, reward)
	}
	return reward, nil
}

func (m *mockCouponRepository) List(ctx context.Context, f model.CouponFilter, page model.Page) ([]model.Coupon, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f, page)
	}
	return []model.Coupon{}, 0, nil
}

func (m *mockCouponRepository) Stats(ctx context.Context) (*model.CouponStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &model.CouponStats{}, nil
}

func (m *mockCouponRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockRedemptionRepository is a mock implementation of RedemptionRepositoryInterface.
type mockRedemptionRepository struct {
	getRedeemersByCouponFn func(ctx context.Context, couponCode string) ([]string, error)
	hasRedeemedFn          func(ctx context.Context, tx database.TxQuerier, redeemerID string) (bool, error)
	insertFn               func(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error
}

func (m *mockRedemptionRepository) HasRedeemed(ctx context.Context, tx database.TxQuerier, redeemerID string) (bool, error) {
	if m.hasRedeemedFn != nil {
		return m.hasRedeemedFn(ctx, tx, redeemerID)
	}
	return false, nil
}

func (m *mockRedemptionRepository) GetRedeemersByCoupon(ctx context.Context, couponCode string) ([]string, error) {
	if m.getRedeemersByCouponFn != nil {
		return m.getRedeemersByCouponFn(ctx, couponCode)
	}
	return []string{}, nil
}

func (m *mockRedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, red)
	}
	return nil
}

// mockAccessCodeRepository is a mock implementation of AccessCodeRepositoryInterface.
type mockAccessCodeRepository struct {
	insertFn         func(ctx context.Context, ac *model.AccessCode) error
	existsFn         func(ctx context.Context, code string) (bool, error)
	getByCodeFn      func(ctx context.Context, code string) (*model.AccessCode, error)
	getForUpdateFn   func(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error)
	insertUsageFn    func(ctx context.Context, tx database.TxQuerier, code, username string, at time.Time) error
	incrementUsageFn func(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error)
	deactivateFn     func(ctx context.Context, code string) error
	activateFn       func(ctx context.Context, tx database.TxQuerier, code string) error
	deleteFn         func(ctx context.Context, code string) error
	getUsagesFn      func(ctx context.Context, code string) ([]model.AccessCodeUsage, error)
	getByUserFn      func(ctx context.Context, username string) ([]model.UserAccessCode, error)
	listFn           func(ctx context.Context, f model.AccessCodeFilter, page model.Page, now time.Time) ([]model.AccessCode, int, error)
	statsFn          func(ctx context.Context, now time.Time) (*model.AccessCodeStats, error)
}

func (m *mockAccessCodeRepository) Insert(ctx context.Context, ac *model.AccessCode) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, ac)
	}
	return nil
}

func (m *mockAccessCodeRepository) Exists(ctx context.Context, code string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, code)
	}
	return false, nil
}

func (m *mockAccessCodeRepository) GetByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAccessCodeRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error) {
	if m.getForUpdateFn != nil {
		return m.getForUpdateFn(ctx, tx, code)
	}
	return nil, ErrAccessCodeNotFound
}

func (m *mockAccessCodeRepository) InsertUsage(ctx context.Context, tx database.TxQuerier, code, username string, at time.Time) error {
	if m.insertUsageFn != nil {
		return m.insertUsageFn(ctx, tx, code, username, at)
	}
	return nil
}

func (m *mockAccessCodeRepository) IncrementUsage(ctx context.Context, tx database.TxQuerier, code string) (*model.AccessCode, error) {
	if m.incrementUsageFn != nil {
		return m.incrementUsageFn(ctx, tx, code)
	}
	return nil, ErrAccessCodeExhausted
}

func (m *mockAccessCodeRepository) Deactivate(ctx context.Context, code string) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, code)
	}
	return nil
}

func (m *mockAccessCodeRepository) Activate(ctx context.Context, tx database.TxQuerier, code string) error {
	if m.activateFn != nil {
		return m.activateFn(ctx, tx, code)
	}
	return nil
}

func (m *mockAccessCodeRepository) Delete(ctx context.Context, code string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, code)
	}
	return nil
}

func (m *mockAccessCodeRepository) GetUsages(ctx context.Context, code string) ([]model.AccessCodeUsage, error) {
	if m.getUsagesFn != nil {
		return m.getUsagesFn(ctx, code)
	}
	return []model.AccessCodeUsage{}, nil
}

func (m *mockAccessCodeRepository) GetByUser(ctx context.Context, username string) ([]model.UserAccessCode, error) {
	if m.getByUserFn != nil {
		return m.getByUserFn(ctx, username)
	}
	return []model.UserAccessCode{}, nil
}

func (m *mockAccessCodeRepository) List(ctx context.Context, f model.AccessCodeFilter, page model.Page, now time.Time) ([]model.AccessCode, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f, page, now)
	}
	return []model.AccessCode{}, 0, nil
}

func (m *mockAccessCodeRepository) Stats(ctx context.Context, now time.Time) (*model.AccessCodeStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, now)
	}
	return &model.AccessCodeStats{}, nil
}

// stubCodes returns fixed codes, cycling through accessCodes when set.
type stubCodes struct {
	couponCode  string
	accessCodes []string
	calls       int
}

func (s *stubCodes) CouponCode(seed string) string {
	if s.couponCode != "" {
		return s.couponCode
	}
	return "ABCD-1234"
}

func (s *stubCodes) AccessCode() string {
	if len(s.accessCodes) == 0 {
		s.calls++
		return "BETA01"
	}
	code := s.accessCodes[s.calls%len(s.accessCodes)]
	s.calls++
	return code
}

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
	committed  bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

func beginnerFor(tx *mockTx) *mockTxBeginner {
	return &mockTxBeginner{
		beginFn: func(ctx context.Context) (pgx.Tx, error) {
			return tx, nil
		},
	}
}

func intPtr(i int) *int {
	return &i
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
