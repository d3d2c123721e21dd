package status

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/mocap/common"
	"github.com/yeti47/mocap/ledger"
	"github.com/yeti47/mocap/pipeline"
)

const (
	defaultClipLimit = 50
	maxClipLimit     = 500
)

// StatsProvider supplies pipeline counters
type StatsProvider interface {
	Stats() pipeline.Stats
}

// StatusHandler serves pipeline state and the clip ledger
type StatusHandler struct {
	logger common.Logger
	stats  StatsProvider
	ledger ledger.Ledger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(logger common.Logger, stats StatsProvider, clipLedger ledger.Ledger) *StatusHandler {
	if logger == nil {
		logger = common.NopLogger
	}
	if clipLedger == nil {
		clipLedger = ledger.NopLedger{}
	}
	return &StatusHandler{
		logger: logger,
		stats:  stats,
		ledger: clipLedger,
	}
}

// GetStats handles GET /api/stats
func (h *StatusHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Stats())
}

// ClipsResponse represents the clip listing response
type ClipsResponse struct {
	Clips  []*ledger.ClipRecord      `json:"clips"`
	Counts map[ledger.ClipStatus]int `json:"counts"`
}

// GetClips handles GET /api/clips?limit=N
func (h *StatusHandler) GetClips(c *gin.Context) {
	limit := defaultClipLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxClipLimit)
	}

	clips, err := h.ledger.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list clips", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	counts, err := h.ledger.Counts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count clips", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if clips == nil {
		clips = []*ledger.ClipRecord{}
	}
	c.JSON(http.StatusOK, ClipsResponse{Clips: clips, Counts: counts})
}
