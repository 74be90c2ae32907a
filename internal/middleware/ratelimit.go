package middleware

import (
	"net/http"

	"github.com/GoStakeVault/stakegate/internal/model"
	"github.com/GoStakeVault/stakegate/internal/service"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles per account. Must run after AuthMiddleware.
// This is edge protection only; the ledger's cooldown interval is a separate
// business rule enforced in the ledger itself.
func RateLimitMiddleware(registry *service.AccountRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountVal, exists := c.Get(ContextAccountKey)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		account := accountVal.(*model.Account)

		limiter := registry.GetLimiterForAccount(account.Address)
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
