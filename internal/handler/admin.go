package handler

import (
	"net/http"

	"github.com/GoStakeVault/stakegate/internal/ledger"
	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/GoStakeVault/stakegate/internal/pkg/apperrors"
	"github.com/GoStakeVault/stakegate/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler serves the owner-only surface. Requests arrive through
// AdminMiddleware, so every ledger call runs as the configured owner.
type AdminHandler struct {
	ledger   *ledger.Ledger
	registry *service.AccountRegistry
}

func NewAdminHandler(l *ledger.Ledger, registry *service.AccountRegistry) *AdminHandler {
	return &AdminHandler{ledger: l, registry: registry}
}

// ModifyTier serves PUT /v1/admin/tiers/:id.
func (h *AdminHandler) ModifyTier(c *gin.Context) {
	tierID, err := parseTierID(c.Param("id"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid tier id"))
		return
	}

	var req model.ModifyTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	if err := h.ledger.ModifyTier(h.ledger.Owner(), tierID, req.RewardRateBps, req.LockDurationSeconds); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier_id":               tierID,
		"reward_rate_bps":       req.RewardRateBps,
		"lock_duration_seconds": req.LockDurationSeconds,
	})
}

// UpdateAllowList serves PUT /v1/admin/allowlist/:account.
func (h *AdminHandler) UpdateAllowList(c *gin.Context) {
	address := c.Param("account")

	var req model.AllowListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	if err := h.ledger.UpdateAllowListStatus(h.ledger.Owner(), address, *req.Status); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account": address,
		"status":  *req.Status,
	})
}

// RegisterAccount serves POST /v1/admin/accounts: binds a gateway API key to
// an address so it can authenticate. Allow-listing is a separate step.
func (h *AdminHandler) RegisterAccount(c *gin.Context) {
	var req model.RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	if _, exists := h.registry.GetByApiKey(req.ApiKey); exists {
		c.Error(apperrors.NewInvalidRequest("api key already registered"))
		return
	}

	h.registry.Register(&model.Account{
		Address: req.Address,
		Name:    req.Name,
		ApiKey:  req.ApiKey,
		Rate: model.RateLimitConfig{
			QPS:   req.QPS,
			Burst: req.Burst,
		},
	})

	c.JSON(http.StatusCreated, gin.H{
		"address":      req.Address,
		"name":         req.Name,
		"allow_listed": h.ledger.IsAllowListed(req.Address),
	})
}

// ListAccounts serves GET /v1/admin/accounts.
func (h *AdminHandler) ListAccounts(c *gin.Context) {
	accounts := h.registry.List()
	out := make([]gin.H, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, gin.H{
			"address":      account.Address,
			"name":         account.Name,
			"allow_listed": h.ledger.IsAllowListed(account.Address),
			"withdrawn":    h.ledger.HasWithdrawn(account.Address),
		})
	}
	c.JSON(http.StatusOK, out)
}
