package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/GoStakeVault/stakegate/internal/pkg/apperrors"
	"github.com/gin-gonic/gin"
)

func newIdempotencyRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Set(ContextAccountKey, &model.Account{Address: "0xalice", ApiKey: "sk-alice"})
	})
	router.Use(IdempotencyMiddleware(NewInMemIdempotencyStore()))
	router.POST("/v1/withdrawals", handler)
	return router
}

func doIdempotent(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/withdrawals", nil)
	req.Header.Set(HeaderIdempotencyKey, key)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	calls := 0
	router := newIdempotencyRouter(func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"total": "1050"})
	})

	rec := doIdempotent(router, "key-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec2 := doIdempotent(router, "key-1")
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected replayed 200, got %d", rec2.Code)
	}
	if rec2.Body.String() != rec.Body.String() {
		t.Fatalf("replayed body differs: %q vs %q", rec2.Body.String(), rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler re-ran on replay: %d calls", calls)
	}
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	router := newIdempotencyRouter(func(c *gin.Context) {
		c.Error(apperrors.New(apperrors.ErrAlreadyWithdrawn, "account has already withdrawn", nil))
	})

	rec := doIdempotent(router, "key-1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	// A retry with the same key must re-run the handler and report the same
	// failure, not replay an empty success.
	rec2 := doIdempotent(router, "key-1")
	if rec2.Code != http.StatusConflict {
		t.Fatalf("retried failure lost its status: expected 409, got %d (body %q)", rec2.Code, rec2.Body.String())
	}
	if rec2.Body.Len() == 0 {
		t.Fatalf("retried failure has empty body")
	}
}
