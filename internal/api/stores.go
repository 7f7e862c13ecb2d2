package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/claimy/claimy-admin/internal/stores"
)

type storeRequest struct {
	StoreID        string `json:"storeId" binding:"notblank"`
	Name           string `json:"name" binding:"notblank"`
	PrimaryColor   string `json:"primaryColor" binding:"notblank"`
	SecondaryColor string `json:"secondaryColor"`
	Email          string `json:"email" binding:"notblank,email"`
}

func (r storeRequest) input() stores.Input {
	return stores.Input{
		StoreID:        r.StoreID,
		Name:           r.Name,
		PrimaryColor:   r.PrimaryColor,
		SecondaryColor: r.SecondaryColor,
		Email:          r.Email,
	}
}

// ListStores returns every configured store
func (h *Handlers) ListStores(c *gin.Context) {
	page, err := h.stores.List(c.Request.Context())
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateStore adds a store
func (h *Handlers) CreateStore(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	store, err := h.stores.Create(c.Request.Context(), req.input())
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusCreated, store)
}

// UpdateStore replaces a store's configuration
func (h *Handlers) UpdateStore(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		presentError(c, h.logger, bindError(err))
		return
	}

	store, err := h.stores.Update(c.Request.Context(), c.Param("storeId"), req.input())
	if presentError(c, h.logger, err) {
		return
	}
	c.JSON(http.StatusOK, store)
}
