package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/claimy/claimy-admin/internal/auth"
	"github.com/claimy/claimy-admin/internal/cache"
	"github.com/claimy/claimy-admin/internal/cases"
	"github.com/claimy/claimy-admin/internal/config"
	"github.com/claimy/claimy-admin/internal/database"
	"github.com/claimy/claimy-admin/internal/desk"
	"github.com/claimy/claimy-admin/internal/metrics"
	"github.com/claimy/claimy-admin/internal/stores"
	"github.com/claimy/claimy-admin/pkg/logger"
)

// Dependencies are the services the HTTP layer delegates to.
type Dependencies struct {
	Config     *config.Config
	DB         *gorm.DB
	Cache      cache.Cache
	Cases      *cases.Service
	Desk       *desk.Desk
	Stores     *stores.Service
	Sessions   *auth.Sessions
	Identities *auth.Identities
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

// Handlers holds all HTTP handlers
type Handlers struct {
	db         *gorm.DB
	cache      cache.Cache
	cases      *cases.Service
	desk       *desk.Desk
	stores     *stores.Service
	sessions   *auth.Sessions
	identities *auth.Identities
	logger     *logger.Logger
	cfg        *config.Config
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		db:         deps.DB,
		cache:      deps.Cache,
		cases:      deps.Cases,
		desk:       deps.Desk,
		stores:     deps.Stores,
		sessions:   deps.Sessions,
		identities: deps.Identities,
		logger:     deps.Logger,
		cfg:        deps.Config,
	}
}

type listCasesQuery struct {
	Status string `form:"status"`
	Q      string `form:"q"`
	Limit  int    `form:"limit"`
	Skip   int    `form:"skip"`
}

type analysisRequest struct {
	Text string `json:"text"`
}

type requestInfoRequest struct {
	Message           string `json:"message"`
	RequiresFile      bool   `json:"requiresFile"`
	RequiresYesNo     bool   `json:"requiresYesNo"`
	SupersedePrevious bool   `json:"supersedePrevious"`
}

type approveRequest struct {
	Code       string `json:"code"`
	ExpiryDate string `json:"expiryDate"`
}

type rejectRequest struct {
	Note string `json:"note"`
}

type emailRequest struct {
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	To              string   `json:"to" binding:"omitempty,email"`
	AttachProduct   bool     `json:"attachProduct"`
	AttachReceipt   bool     `json:"attachReceipt"`
	AttachInfoFiles []string `json:"attachInfoFiles"`
}

type replyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type deleteRequest struct {
	DeleteAssets bool `json:"deleteAssets"`
}

// ListCases returns one page of the case queue
func (h *Handlers) ListCases(c *gin.Context) {
	var query listCasesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		presentError(c, h.logger, cases.Invalid("limit and skip must be integers"))
		return
	}

	page, err := h.cases.List(c.Request.Context(), cases.ListParams{
		Status: query.Status,
		Query:  query.Q,
		Limit:  query.Limit,
		Skip:   query.Skip,
	})
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetCase returns one normalized case
func (h *Handlers) GetCase(c *gin.Context) {
	record, err := h.cases.Get(c.Request.Context(), c.Param("id"))
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteCase removes a case and optionally its stored images
func (h *Handlers) DeleteCase(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		presentError(c, h.logger, bindError(err))
		return
	}
	if c.Query("deleteAssets") == "true" {
		req.DeleteAssets = true
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	if presentError(c, h.logger, h.desk.Delete(ctx, c.Param("id"), req.DeleteAssets)) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SaveAnalysis stores the reviewer's manual analysis
func (h *Handlers) SaveAnalysis(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	record, err := h.cases.SaveAnalysis(c.Request.Context(), c.Param("id"), actor(c), req.Text)
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, record)
}

// RequestInfo asks the claimant for more information
func (h *Handlers) RequestInfo(c *gin.Context) {
	var req requestInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	record, err := h.cases.RequestInfo(c.Request.Context(), c.Param("id"), actor(c), cases.InfoRequestInput{
		Message:           req.Message,
		RequiresFile:      req.RequiresFile,
		RequiresYesNo:     req.RequiresYesNo,
		SupersedePrevious: req.SupersedePrevious,
	})
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, record)
}

// Approve approves a case with a resolution code
func (h *Handlers) Approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	expiry, err := parseExpiry(req.ExpiryDate)
	if presentError(c, h.logger, err) {
		return
	}

	record, err := h.cases.Approve(c.Request.Context(), c.Param("id"), actor(c), cases.ApproveInput{
		Code:       req.Code,
		ExpiryDate: expiry,
	})
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, record)
}

// Reject closes a case as rejected
func (h *Handlers) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		presentError(c, h.logger, bindError(err))
		return
	}

	record, err := h.cases.Reject(c.Request.Context(), c.Param("id"), actor(c), req.Note)
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, record)
}

// GeneratePrompt renders the review brief of a case
func (h *Handlers) GeneratePrompt(c *gin.Context) {
	record, err := h.cases.Get(c.Request.Context(), c.Param("id"))
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": cases.BuildPrompt(*record)})
}

// SaveDraft records an edited email draft
func (h *Handlers) SaveDraft(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	result, err := h.desk.Draft(c.Request.Context(), c.Param("id"), actor(c), req.input())
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, result)
}

// SendEmail sends an email about the case through the mail provider
func (h *Handlers) SendEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	record, err := h.desk.Send(ctx, c.Param("id"), actor(c), req.input())
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetThread fetches and reconciles the case's mail thread
func (h *Handlers) GetThread(c *gin.Context) {
	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	view, err := h.desk.Thread(ctx, c.Param("id"))
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, view)
}

// ReplyThread answers in the case's mail thread
func (h *Handlers) ReplyThread(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	record, err := h.desk.Reply(ctx, c.Param("id"), actor(c), desk.ReplyInput{
		Subject: req.Subject,
		Body:    req.Body,
	})
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, record)
}

// SyncMails reconciles the threads of the most recent cases
func (h *Handlers) SyncMails(c *gin.Context) {
	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	result, err := h.desk.SyncRecent(ctx)
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"scanned": result.Scanned,
		"synced":  result.Synced,
		"failed":  result.Failed,
	})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	dbHealthy := database.Ping(h.db) == nil

	code, status := http.StatusOK, "healthy"
	if !dbHealthy {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": dbHealthy,
		"cache":    h.cache.Stats(),
		"time":     time.Now().Unix(),
	})
}

func (r emailRequest) input() desk.SendInput {
	return desk.SendInput{
		Subject:         r.Subject,
		Body:            r.Body,
		To:              r.To,
		AttachProduct:   r.AttachProduct,
		AttachReceipt:   r.AttachReceipt,
		AttachInfoFiles: r.AttachInfoFiles,
	}
}

func (h *Handlers) upstreamContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := 30 * time.Second
	if h.cfg != nil && h.cfg.UpstreamTimeout > 0 {
		timeout = h.cfg.UpstreamTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

// parseExpiry accepts RFC 3339 timestamps and plain dates.
func parseExpiry(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, cases.Invalid("Invalid expiry date %q", value)
}
