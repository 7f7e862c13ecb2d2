package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	RegisterValidators()
	h := NewHandlers(deps)

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		// Health check
		api.GET("/health", h.HealthCheck)
	}

	admin := api.Group("/admin")
	if deps.Config != nil {
		admin.Use(RateLimit(deps.Config.APIRateLimit, deps.Config.APIRateWindow))
	}

	// Session exchange is the only unauthenticated admin endpoint
	admin.POST("/session", h.CreateSession)

	authed := admin.Group("", RequireAdmin(deps.Sessions, deps.Logger))
	{
		// Case queue and per-case actions
		authed.GET("/cases", h.ListCases)
		authed.GET("/cases/:id", h.GetCase)
		authed.DELETE("/cases/:id", h.DeleteCase)
		authed.POST("/cases/:id/analysis", h.SaveAnalysis)
		authed.POST("/cases/:id/request-info", h.RequestInfo)
		authed.POST("/cases/:id/approve", h.Approve)
		authed.POST("/cases/:id/reject", h.Reject)
		authed.POST("/cases/:id/prompt", h.GeneratePrompt)

		// Mail
		authed.POST("/cases/:id/email/draft", h.SaveDraft)
		authed.POST("/cases/:id/email/send", h.SendEmail)
		authed.GET("/cases/:id/thread", h.GetThread)
		authed.POST("/cases/:id/thread/reply", h.ReplyThread)
		authed.POST("/sync-mails", h.SyncMails)

		// Store configuration
		authed.GET("/stores", h.ListStores)
		authed.POST("/stores", h.CreateStore)
		authed.PUT("/stores/:storeId", h.UpdateStore)
	}
}
