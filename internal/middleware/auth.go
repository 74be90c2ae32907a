package middleware

import (
	"net/http"

	"github.com/GoStakeVault/stakegate/internal/config"
	"github.com/GoStakeVault/stakegate/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	HeaderGatewayKey  = "X-Gateway-Key"
	ContextAccountKey = "account"
)

func AuthMiddleware(cfg *config.Config, registry *service.AccountRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			if cfg != nil && !cfg.Auth.RequireAPIKey {
				if account := registry.Default(); account != nil {
					c.Set(ContextAccountKey, account)
					c.Next()
					return
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		account, ok := registry.GetByApiKey(apiKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextAccountKey, account)
		c.Next()
	}
}
