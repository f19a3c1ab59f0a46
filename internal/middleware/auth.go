package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"numbers-game-backend/internal/services"
)

// AdminAuth guards round control with an operator bearer token. A nil
// jwtService disables the check.
func AdminAuth(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtService == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Invalid authorization format"})
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Invalid or expired token"})
			return
		}

		c.Set("operator", claims.Subject)
		c.Next()
	}
}

// RateLimitMiddleware limits bet submissions per client IP. Without redis
// it lets everything through; redis errors fail open.
func RateLimitMiddleware(redisService *services.RedisService, limit int, logger *zap.Logger) gin.HandlerFunc {
	if limit <= 0 {
		limit = services.DefaultRateLimitBets
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	window := services.DefaultRateLimitWindow

	return func(c *gin.Context) {
		if redisService == nil {
			c.Next()
			return
		}

		allowed, err := redisService.CheckRateLimit(c.ClientIP(), "bet", limit, window)
		if err != nil {
			logger.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":        "RATE_LIMITED",
				"message":     "Too many bets. Please wait.",
				"retry_after": window / time.Second,
			})
			return
		}

		c.Next()
	}
}
