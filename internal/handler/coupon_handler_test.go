package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/referral-coupon-service/internal/model"
	"github.com/fairyhunter13/referral-coupon-service/internal/service"
	appvalidator "github.com/fairyhunter13/referral-coupon-service/internal/validator"
)

// mockCouponLedger is a mock implementation of CouponLedgerInterface and CouponAdminInterface.
type mockCouponLedger struct {
	issueFn  func(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error)
	lookupFn func(ctx context.Context, ownerID string) (*model.CouponDetail, error)
	redeemFn func(ctx context.Context, req *model.RedeemCouponRequest) (*model.RedemptionResult, error)
	listFn   func(ctx context.Context, f model.CouponFilter, page model.Page) (*model.ListResult[model.Coupon], error)
	statsFn  func(ctx context.Context) (*model.CouponStats, error)
	deleteFn func(ctx context.Context, id string) error
}

func (m *mockCouponLedger) Issue(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error) {
	if m.issueFn != nil {
		return m.issueFn(ctx, req)
	}
	return &model.Coupon{OwnerID: req.OwnerID}, nil
}

func (m *mockCouponLedger) Lookup(ctx context.Context, ownerID string) (*model.CouponDetail, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, ownerID)
	}
	return nil, service.ErrCouponNotFound
}

func (m *mockCouponLedger) Redeem(ctx context.Context, req *model.RedeemCouponRequest) (*model.RedemptionResult, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, req)
	}
	return &model.RedemptionResult{}, nil
}

func (m *mockCouponLedger) List(ctx context.Context, f model.CouponFilter, page model.Page) (*model.ListResult[model.Coupon], error) {
	if m.listFn != nil {
		return m.listFn(ctx, f, page)
	}
	return &model.ListResult[model.Coupon]{Items: []model.Coupon{}, Pagination: model.NewPagination(0, page)}, nil
}

func (m *mockCouponLedger) Stats(ctx context.Context) (*model.CouponStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &model.CouponStats{}, nil
}

func (m *mockCouponLedger) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func setupCouponApp(ledger *mockCouponLedger) *fiber.App {
	app := fiber.New()
	h := NewCouponHandler(ledger, appvalidator.New())
	app.Post("/api/coupons", h.IssueCoupon)
	app.Post("/api/coupons/redeem", h.RedeemCoupon)
	app.Get("/api/coupons/:ownerId", h.GetCoupon)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, app, req)
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	}
	return resp, body
}

func TestIssueCoupon_Success(t *testing.T) {
	var captured *model.IssueCouponRequest
	ledger := &mockCouponLedger{
		issueFn: func(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error) {
			captured = req
			return &model.Coupon{Code: "A1B2-C3D4", OwnerID: req.OwnerID, Role: model.RoleCreator}, nil
		},
	}

	resp, body := postJSON(t, setupCouponApp(ledger), "/api/coupons",
		`{"owner_id": "alice", "display_name": "Alice", "follower_count": 5000, "role": "creator"}`)

	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "A1B2-C3D4", body["code"])
	require.NotNil(t, captured)
	assert.Equal(t, 5000, *captured.FollowerCount)
}

func TestIssueCoupon_ValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing owner", `{"display_name": "A", "follower_count": 5000}`, "invalid request: owner_id is required"},
		{"blank owner", `{"owner_id": "  ", "display_name": "A", "follower_count": 5000}`, "invalid request: owner_id cannot be whitespace only"},
		{"missing followers", `{"owner_id": "alice", "display_name": "A"}`, "invalid request: follower_count is required"},
		{"negative followers", `{"owner_id": "alice", "display_name": "A", "follower_count": -1}`, "invalid request: follower_count must be at least 0"},
		{"huge followers", `{"owner_id": "alice", "display_name": "A", "follower_count": 3000000000}`, "invalid request: follower_count must be at most 2147483647"},
		{"bad role", `{"owner_id": "alice", "display_name": "A", "follower_count": 5000, "role": "admin"}`, "invalid request: role must be one of: creator user"},
		{"malformed json", `{"owner_id": `, "invalid request body"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			ledger := &mockCouponLedger{
				issueFn: func(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error) {
					called = true
					return nil, nil
				},
			}

			resp, body := postJSON(t, setupCouponApp(ledger), "/api/coupons", tc.body)

			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.wantMsg, body["error"])
			assert.Equal(t, "invalid_input", body["kind"])
			assert.False(t, called, "ledger should not be called on invalid input")
		})
	}
}

func TestIssueCoupon_BusinessErrors(t *testing.T) {
	testCases := []struct {
		err        error
		wantStatus int
	}{
		{service.ErrBelowFollowerThreshold, fiber.StatusBadRequest},
		{service.ErrCouponExists, fiber.StatusConflict},
		{service.ErrCouponCodeCollision, fiber.StatusConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			ledger := &mockCouponLedger{
				issueFn: func(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error) {
					return nil, tc.err
				},
			}

			resp, body := postJSON(t, setupCouponApp(ledger), "/api/coupons",
				`{"owner_id": "alice", "display_name": "Alice", "follower_count": 10}`)

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestIssueCoupon_InternalError(t *testing.T) {
	ledger := &mockCouponLedger{
		issueFn: func(ctx context.Context, req *model.IssueCouponRequest) (*model.Coupon, error) {
			return nil, errors.New("insert coupon: connection refused")
		},
	}

	resp, body := postJSON(t, setupCouponApp(ledger), "/api/coupons",
		`{"owner_id": "alice", "display_name": "Alice", "follower_count": 5000}`)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body["error"], "store details must not leak")
}

func TestGetCoupon_Success(t *testing.T) {
	ledger := &mockCouponLedger{
		lookupFn: func(ctx context.Context, ownerID string) (*model.CouponDetail, error) {
			return &model.CouponDetail{
				Coupon:     model.Coupon{OwnerID: ownerID, Code: "A1B2-C3D4", Points: 20},
				RedeemedBy: []string{"bob", "carol"},
			}, nil
		},
	}

	resp, body := do(t, setupCouponApp(ledger), httptest.NewRequest(http.MethodGet, "/api/coupons/alice", nil))

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["owner_id"])
	assert.Equal(t, float64(20), body["points"])
	assert.Equal(t, []any{"bob", "carol"}, body["redeemed_by"])
}

func TestGetCoupon_NotFound(t *testing.T) {
	resp, body := do(t, setupCouponApp(&mockCouponLedger{}), httptest.NewRequest(http.MethodGet, "/api/coupons/nobody", nil))

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "coupon not found", body["error"])
	assert.Equal(t, "not_found", body["kind"])
}

func TestRedeemCoupon_Success(t *testing.T) {
	var captured *model.RedeemCouponRequest
	ledger := &mockCouponLedger{
		redeemFn: func(ctx context.Context, req *model.RedeemCouponRequest) (*model.RedemptionResult, error) {
			captured = req
			return &model.RedemptionResult{
				RedemptionID:   "r-1",
				CreatorPoints:  10,
				RedeemerPoints: 10,
				NewUser:        true,
				NewCouponCode:  "BBBB-2222",
			}, nil
		},
	}

	resp, body := postJSON(t, setupCouponApp(ledger), "/api/coupons/redeem",
		`{"redeemer_id": "bob", "coupon_code": "aaaa-1111", "display_name": "Bob", "follower_count": 1500}`)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["new_user"])
	assert.Equal(t, "BBBB-2222", body["new_coupon_code"])
	require.NotNil(t, captured.NewUser())
	assert.Equal(t, 1500, captured.NewUser().FollowerCount)
}

func TestRedeemCoupon_BusinessErrors(t *testing.T) {
	testCases := []struct {
		err        error
		wantStatus int
	}{
		{service.ErrCouponNotFound, fiber.StatusNotFound},
		{service.ErrSelfRedemption, fiber.StatusForbidden},
		{service.ErrAlreadyRedeemed, fiber.StatusForbidden},
		{service.ErrRoleMismatch, fiber.StatusForbidden},
		{service.ErrMissingNewUserInfo, fiber.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			ledger := &mockCouponLedger{
				redeemFn: func(ctx context.Context, req *model.RedeemCouponRequest) (*model.RedemptionResult, error) {
					return nil, tc.err
				},
			}

			resp, body := postJSON(t, setupCouponApp(ledger), "/api/coupons/redeem",
				`{"redeemer_id": "bob", "coupon_code": "AAAA-1111"}`)

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
			assert.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestRedeemCoupon_Timeout(t *testing.T) {
	ledger := &mockCouponLedger{
		redeemFn: func(ctx context.Context, req *model.RedeemCouponRequest) (*model.RedemptionResult, error) {
			return nil, context.DeadlineExceeded
		},
	}

	resp, body := postJSON(t, setupCouponApp(ledger), "/api/coupons/redeem",
		`{"redeemer_id": "bob", "coupon_code": "AAAA-1111"}`)

	assert.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, "request timed out", body["error"])
}
