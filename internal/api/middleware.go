package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/claimy/claimy-admin/internal/auth"
	"github.com/claimy/claimy-admin/pkg/logger"
)

const adminContextKey = "admin"

// RequireAdmin rejects requests without a valid admin session token.
func RequireAdmin(sessions *auth.Sessions, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Missing Authorization header",
			})
			return
		}

		admin, err := sessions.Verify(token)
		if presentError(c, log, err) {
			return
		}
		c.Set(adminContextKey, admin)
		c.Next()
	}
}

// actor is the email recorded in history entries for the current request.
func actor(c *gin.Context) string {
	if value, ok := c.Get(adminContextKey); ok {
		if admin, ok := value.(auth.Admin); ok && admin.Email != "" {
			return admin.Email
		}
	}
	return "admin"
}

// RateLimit allows limit requests per window for each client IP. Idle
// limiters expire from the cache after a few windows.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := cache.New(3*window, 6*window)
	every := rate.Every(window / time.Duration(limit))

	return func(c *gin.Context) {
		ip := c.ClientIP()
		var limiter *rate.Limiter
		if cached, found := limiters.Get(ip); found {
			limiter = cached.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(every, limit)
			if err := limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
				if cached, found := limiters.Get(ip); found {
					limiter = cached.(*rate.Limiter)
				}
			}
		}
		limiters.SetDefault(ip, limiter)

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests",
			})
			return
		}
		c.Next()
	}
}
