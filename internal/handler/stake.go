package handler

import (
	"net/http"
	"strconv"

	"github.com/GoStakeVault/stakegate/internal/ledger"
	"github.com/GoStakeVault/stakegate/internal/middleware"
	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/GoStakeVault/stakegate/internal/pkg/apperrors"
	"github.com/GoStakeVault/stakegate/internal/pkg/logger"
	"github.com/GoStakeVault/stakegate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type StakeHandler struct {
	ledger *ledger.Ledger
	usage  service.UsageRepo
}

func NewStakeHandler(l *ledger.Ledger, usage service.UsageRepo) *StakeHandler {
	return &StakeHandler{ledger: l, usage: usage}
}

func (h *StakeHandler) PlaceStake(c *gin.Context) {
	// 1. Get Account from Context (set by AuthMiddleware)
	accountVal, exists := c.Get(middleware.ContextAccountKey)
	if !exists {
		c.Error(apperrors.New(apperrors.ErrUnauthorized, "unauthorized: missing account context", nil))
		return
	}
	account := accountVal.(*model.Account)

	// 2. Bind Request
	var req model.StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidAmount, "amount is not a valid decimal", err))
		return
	}

	// 3. Call the Ledger
	rec, reward, err := h.ledger.Stake(c.Request.Context(), account.Address, req.TierID, amount)
	if err != nil {
		c.Error(err)
		return
	}

	resp := model.StakeResponse{
		Account:      account.Address,
		TierID:       req.TierID,
		Amount:       amount,
		Reward:       reward,
		StakedAmount: rec.StakedAmount,
		EarnedReward: rec.EarnedReward,
		ReleaseTime:  rec.ReleaseTime,
	}

	// Daily usage is informational; failures are logged and ignored.
	if h.usage != nil {
		ctx := c.Request.Context()
		amt, _ := amount.Float64()
		if err := h.usage.AddDailyUsage(ctx, account.Address, 1, amt); err != nil {
			logger.Warn("failed to record daily usage", "account", account.Address, "error", err)
		} else if stakes, volume, err := h.usage.GetDailyUsage(ctx, account.Address); err == nil {
			resp.DailyStakes = stakes
			resp.DailyVolume = volume
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *StakeHandler) Withdraw(c *gin.Context) {
	account := c.MustGet(middleware.ContextAccountKey).(*model.Account)

	var req model.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	total, err := h.ledger.Withdraw(c.Request.Context(), account.Address, req.TierID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, model.WithdrawResponse{
		Account: account.Address,
		TierID:  req.TierID,
		Total:   total,
	})
}

// GetStakeDetails serves GET /v1/stakes/:account/:tier. Reads are open to any
// authenticated caller; the ledger holds no secrets per record.
func (h *StakeHandler) GetStakeDetails(c *gin.Context) {
	address := c.Param("account")
	tierID, err := parseTierID(c.Param("tier"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid tier id"))
		return
	}

	rec := h.ledger.GetStakeDetails(address, tierID)
	c.JSON(http.StatusOK, model.StakeDetailsResponse{
		Account:      address,
		TierID:       tierID,
		StakedAmount: rec.StakedAmount,
		EarnedReward: rec.EarnedReward,
		ReleaseTime:  rec.ReleaseTime,
		Withdrawn:    rec.Withdrawn,
	})
}

// GetTier serves GET /v1/tiers/:id. Absent tiers return the zero config,
// mirroring the ledger read.
func (h *StakeHandler) GetTier(c *gin.Context) {
	tierID, err := parseTierID(c.Param("id"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("invalid tier id"))
		return
	}

	tier := h.ledger.GetTier(tierID)
	c.JSON(http.StatusOK, gin.H{
		"tier_id":               tierID,
		"reward_rate_bps":       tier.RewardRateBps,
		"lock_duration_seconds": tier.LockDurationSeconds,
	})
}

func parseTierID(raw string) (uint32, error) {
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(parsed), nil
}
