package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/claimy/claimy-admin/internal/auth"
)

// CreateSession exchanges an identity provider ID token for an admin
// session token.
func (h *Handlers) CreateSession(c *gin.Context) {
	idToken, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Missing Firebase ID token",
		})
		return
	}
	if h.identities == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Identity provider is not configured",
		})
		return
	}

	admin, err := h.identities.Verify(c.Request.Context(), idToken)
	if presentError(c, h.logger, err) {
		return
	}

	session, err := h.sessions.Issue(admin)
	if presentError(c, h.logger, err) {
		return
	}
	h.logger.Info("Admin session issued", "email", admin.Email)
	c.JSON(http.StatusOK, session)
}
