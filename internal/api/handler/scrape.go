package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kwhite/polytrack/internal/runlog"
	"github.com/kwhite/polytrack/internal/tracker"
)

// ScrapeHandler exposes scrape run history and the admission check for
// operators. All data comes from the shared run log store.
type ScrapeHandler struct {
	store              runlog.Store
	minIntervalMinutes int
}

// NewScrapeHandler creates a new scrape handler.
func NewScrapeHandler(store runlog.Store, minIntervalMinutes int) *ScrapeHandler {
	if minIntervalMinutes <= 0 {
		minIntervalMinutes = tracker.DefaultMinIntervalMinutes
	}
	return &ScrapeHandler{store: store, minIntervalMinutes: minIntervalMinutes}
}

// ListScrapes handles GET /api/v1/scrapes.
func (h *ScrapeHandler) ListScrapes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	runs, total, err := h.store.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Run log store unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scrapes": runs,
		"total":   total,
	})
}

// GetStatistics handles GET /api/v1/scrapes/stats.
func (h *ScrapeHandler) GetStatistics(c *gin.Context) {
	stats, err := h.store.GetStatistics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Run log store unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ShouldRun handles GET /api/v1/scrapes/should-run. It reports the same
// fail-open verdict the scrape job itself would apply.
func (h *ScrapeHandler) ShouldRun(c *gin.Context) {
	interval := h.minIntervalMinutes
	if raw := c.Query("min_interval_minutes"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			interval = v
		}
	}

	result, err := h.store.ShouldRunScrape(c.Request.Context(), interval)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"should_run": true,
			"reason":     "could not verify last scrape time",
		})
		return
	}

	shouldRun, reason := tracker.EvaluateDecision(result, interval)
	c.JSON(http.StatusOK, gin.H{
		"should_run":                shouldRun,
		"reason":                    reason,
		"last_scrape_status":        result.LastScrapeStatus,
		"minutes_since_last_scrape": result.MinutesSinceLastScrape,
	})
}
