package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kwhite/polytrack/internal/repository"
	"github.com/kwhite/polytrack/internal/service"
)

// MarketHandler handles market CRUD endpoints.
type MarketHandler struct {
	markets *service.MarketService
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(markets *service.MarketService) *MarketHandler {
	return &MarketHandler{markets: markets}
}

// ListMarkets handles GET /api/v1/markets.
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	q := repository.MarketQuery{
		ActiveOnly: c.Query("active") == "true",
		Search:     c.Query("search"),
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	}

	markets, total, err := h.markets.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list markets",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"markets":   markets,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetMarket handles GET /api/v1/markets/:id.
func (h *MarketHandler) GetMarket(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid market id"})
		return
	}

	market, err := h.markets.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Market not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get market"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"market": market})
}

// CreateMarket handles POST /api/v1/markets.
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	var input service.MarketInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	market, err := h.markets.Create(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create market"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"market": market})
}

// UpdateMarket handles PUT /api/v1/markets/:id.
func (h *MarketHandler) UpdateMarket(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid market id"})
		return
	}

	var update service.MarketUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	market, err := h.markets.Update(c.Request.Context(), id, update)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Market not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update market"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"market": market})
}

// DeleteMarket handles DELETE /api/v1/markets/:id.
func (h *MarketHandler) DeleteMarket(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid market id"})
		return
	}

	if err := h.markets.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Market not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete market"})
		return
	}

	c.Status(http.StatusNoContent)
}
