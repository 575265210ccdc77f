package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"solana-call-tracker/internal/backfill"
	"solana-call-tracker/internal/domain"
)

// StartRequest is the optional body of POST /backfill/start.
type StartRequest struct {
	Concurrency  int  `json:"concurrency"`
	ForceRefresh bool `json:"force_refresh"`
}

// ProgressResponse is the JSON form of a job snapshot.
type ProgressResponse struct {
	RunID            string  `json:"run_id,omitempty"`
	Status           string  `json:"status"`
	TotalMints       int     `json:"total_mints"`
	ProcessedMints   int     `json:"processed_mints"`
	TotalEntries     int     `json:"total_entries"`
	ProcessedEntries int     `json:"processed_entries"`
	UpdatedCount     int     `json:"updated_count"`
	ErrorCount       int     `json:"error_count"`
	SkippedCount     int     `json:"skipped_count"`
	CurrentMint      string  `json:"current_mint,omitempty"`
	StartedAtMs      int64   `json:"started_at_ms,omitempty"`
	UpdatedAtMs      int64   `json:"updated_at_ms,omitempty"`
	ETAMillis        int64   `json:"eta_ms"`
	AvgMillisPerMint float64 `json:"avg_ms_per_mint"`
	PercentComplete  float64 `json:"percent_complete"`
	LastError        string  `json:"last_error,omitempty"`
}

func toProgressResponse(s domain.JobState) ProgressResponse {
	resp := ProgressResponse{
		RunID:            s.RunID,
		Status:           string(s.Status),
		TotalMints:       s.TotalMints,
		ProcessedMints:   s.ProcessedMints,
		TotalEntries:     s.TotalEntries,
		ProcessedEntries: s.ProcessedEntries,
		UpdatedCount:     s.UpdatedCount,
		ErrorCount:       s.ErrorCount,
		SkippedCount:     s.SkippedCount,
		CurrentMint:      s.CurrentMint,
		StartedAtMs:      s.StartedAtMs,
		UpdatedAtMs:      s.UpdatedAtMs,
		ETAMillis:        s.ETAMillis,
		AvgMillisPerMint: s.AvgMillisPerMint,
		LastError:        s.LastError,
	}
	if s.TotalMints > 0 {
		resp.PercentComplete = float64(s.ProcessedMints) / float64(s.TotalMints) * 100
	}
	return resp
}

// StartBackfill handles POST /backfill/start.
func (h *Handler) StartBackfill(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return
		}
	}
	if req.Concurrency < 0 || req.Concurrency > MaxConcurrency {
		c.JSON(http.StatusBadRequest, gin.H{"error": "concurrency must be between 0 and 100"})
		return
	}

	runID, err := h.ctrl.Start(c.Request.Context(), backfill.Options{
		Concurrency:  req.Concurrency,
		ForceRefresh: req.ForceRefresh,
	})
	if errors.Is(err, backfill.ErrAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{
			"error":    err.Error(),
			"progress": toProgressResponse(h.ctrl.Progress()),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Printf("[api] Backfill %s started (concurrency=%d, force_refresh=%t)", runID, req.Concurrency, req.ForceRefresh)
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": string(domain.JobStatusRunning)})
}

// StopBackfill handles POST /backfill/stop.
func (h *Handler) StopBackfill(c *gin.Context) {
	if !h.ctrl.Stop() {
		c.JSON(http.StatusConflict, gin.H{"error": "no backfill running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}

// GetProgress handles GET /backfill/progress.
func (h *Handler) GetProgress(c *gin.Context) {
	c.JSON(http.StatusOK, toProgressResponse(h.ctrl.Progress()))
}
