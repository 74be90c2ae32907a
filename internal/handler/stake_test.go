package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoStakeVault/stakegate/internal/asset"
	"github.com/GoStakeVault/stakegate/internal/config"
	"github.com/GoStakeVault/stakegate/internal/ledger"
	"github.com/GoStakeVault/stakegate/internal/middleware"
	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/GoStakeVault/stakegate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type testClock struct {
	now int64
}

func (c *testClock) Now() int64 { return c.now }

type stakeFixture struct {
	router *gin.Engine
	clock  *testClock
	book   *ledger.Ledger
	vault  *asset.Vault
}

func newStakeFixture(t *testing.T) *stakeFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Auth: config.AuthConfig{
			RequireAPIKey: true,
			AdminKey:      "admin",
		},
		Accounts: []config.AccountConfig{
			{Address: "0xalice", Name: "alice", APIKey: "sk-alice"},
		},
	}

	clock := &testClock{now: 1_000_000}
	vault := asset.NewVault()
	vault.Mint("0xalice", decimal.NewFromInt(10_000))

	book := ledger.New(ledger.Params{
		Owner:       "0xowner",
		Clock:       clock,
		Transferrer: vault,
	})
	if err := book.UpdateAllowListStatus("0xowner", "0xalice", true); err != nil {
		t.Fatalf("allow-list seed: %v", err)
	}

	registry := service.NewAccountRegistry(cfg)
	stakeHandler := NewStakeHandler(book, service.NewStakeUsageStore())
	adminHandler := NewAdminHandler(book, registry)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg, registry))
	v1.POST("/stakes", stakeHandler.PlaceStake)
	v1.POST("/withdrawals", stakeHandler.Withdraw)
	v1.GET("/stakes/:account/:tier", stakeHandler.GetStakeDetails)
	v1.GET("/tiers/:id", stakeHandler.GetTier)

	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg))
	admin.PUT("/tiers/:id", adminHandler.ModifyTier)

	return &stakeFixture{router: router, clock: clock, book: book, vault: vault}
}

func (f *stakeFixture) do(t *testing.T, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func asAlice() map[string]string {
	return map[string]string{middleware.HeaderGatewayKey: "sk-alice"}
}

func TestPlaceStakeFlow(t *testing.T) {
	f := newStakeFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/stakes", model.StakeRequest{TierID: 1, Amount: "1000"}, asAlice())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp model.StakeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if !resp.Reward.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected reward 50, got %s", resp.Reward)
	}
	if resp.ReleaseTime != f.clock.now+7*24*3600 {
		t.Fatalf("unexpected release time: %d", resp.ReleaseTime)
	}
	if !f.vault.CustodyBalance().Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("stake not moved to custody: %s", f.vault.CustodyBalance())
	}

	// Second stake inside the cooldown window maps to 429.
	rec2 := f.do(t, http.MethodPost, "/v1/stakes", model.StakeRequest{TierID: 2, Amount: "100"}, asAlice())
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 during cooldown, got %d", rec2.Code)
	}
}

func TestWithdrawErrorMapping(t *testing.T) {
	f := newStakeFixture(t)

	// No stake yet: 404.
	rec := f.do(t, http.MethodPost, "/v1/withdrawals", model.WithdrawRequest{TierID: 1}, asAlice())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing stake, got %d", rec.Code)
	}

	if _, _, err := f.book.Stake(context.Background(), "0xalice", 1, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("stake: %v", err)
	}

	// Still locked: 409 with the release time in the body.
	rec2 := f.do(t, http.MethodPost, "/v1/withdrawals", model.WithdrawRequest{TierID: 1}, asAlice())
	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected 409 while locked, got %d", rec2.Code)
	}
	var errResp struct {
		Code        string `json:"code"`
		ReleaseTime int64  `json:"release_time"`
	}
	if err := json.Unmarshal(rec2.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if errResp.Code != "STAKE_STILL_LOCKED" || errResp.ReleaseTime == 0 {
		t.Fatalf("unexpected error body: %s", rec2.Body.String())
	}

	f.clock.now = errResp.ReleaseTime + 1
	rec3 := f.do(t, http.MethodPost, "/v1/withdrawals", model.WithdrawRequest{TierID: 1}, asAlice())
	if rec3.Code != http.StatusOK {
		t.Fatalf("expected 200 after release, got %d: %s", rec3.Code, rec3.Body.String())
	}
	var resp model.WithdrawResponse
	if err := json.Unmarshal(rec3.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if !resp.Total.Equal(decimal.NewFromInt(1050)) {
		t.Fatalf("expected total 1050, got %s", resp.Total)
	}
}

func TestUnauthenticatedStakeRejected(t *testing.T) {
	f := newStakeFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/stakes", model.StakeRequest{TierID: 1, Amount: "100"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d", rec.Code)
	}
}

func TestGetStakeDetailsAndTier(t *testing.T) {
	f := newStakeFixture(t)

	if _, _, err := f.book.Stake(context.Background(), "0xalice", 1, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("stake: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/v1/stakes/0xalice/1", nil, asAlice())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var details model.StakeDetailsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &details); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if !details.StakedAmount.Equal(decimal.NewFromInt(500)) || details.Withdrawn {
		t.Fatalf("unexpected details: %s", rec.Body.String())
	}

	rec2 := f.do(t, http.MethodGet, "/v1/tiers/1", nil, asAlice())
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}

	rec3 := f.do(t, http.MethodGet, "/v1/stakes/0xalice/notanumber", nil, asAlice())
	if rec3.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad tier id, got %d", rec3.Code)
	}
}

func TestAdminModifyTier(t *testing.T) {
	f := newStakeFixture(t)

	body := model.ModifyTierRequest{RewardRateBps: 2000, LockDurationSeconds: 3600}

	rec := f.do(t, http.MethodPut, "/v1/admin/tiers/5", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin key, got %d", rec.Code)
	}

	rec2 := f.do(t, http.MethodPut, "/v1/admin/tiers/5", body, map[string]string{middleware.HeaderAdminKey: "admin"})
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with admin key, got %d: %s", rec2.Code, rec2.Body.String())
	}

	tier := f.book.GetTier(5)
	if tier.RewardRateBps != 2000 || tier.LockDurationSeconds != 3600 {
		t.Fatalf("tier not updated: %+v", tier)
	}
}
