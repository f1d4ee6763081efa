package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"MarketNewsroom/internal/domain"
)

type orchestrateRequest struct {
	CompanyName string `json:"company_name"`
	Ticker      string `json:"ticker"`
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Reason   string `json:"motivo_reprovacao"`
}

type articleView struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	HTMLContent    string             `json:"html_content"`
	Symbol         string             `json:"symbol"`
	Status         domain.DraftStatus `json:"status"`
	Recommendation *string            `json:"recomendacao,omitempty"`
}

func newArticleView(d *domain.Draft) *articleView {
	if d == nil {
		return nil
	}
	return &articleView{
		ID:             d.ID,
		Title:          d.Title,
		HTMLContent:    d.Content,
		Symbol:         d.Ticker,
		Status:         d.Status,
		Recommendation: d.Recommendation,
	}
}

func logsOf(entries []domain.LogEntry) []domain.LogEntry {
	if entries == nil {
		return []domain.LogEntry{}
	}
	return entries
}

// Orchestrate runs the whole pipeline synchronously for one company.
func (h *Handler) Orchestrate(c *gin.Context) {
	var req orchestrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.deps.Pipeline.Run(c.Request.Context(), req.CompanyName, req.Ticker, "api", h.deps.Direct)
	if err != nil && res.Run.ID != 0 {
		h.logger.Error("orchestration failed", "run_id", res.Run.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":     false,
			"status":      res.Run.Status,
			"analysis_id": res.Run.ID,
			"message":     err.Error(),
			"logs":        logsOf(res.Logs()),
		})
		return
	}
	if err != nil {
		h.fail(c, err, gin.H{"logs": logsOf(res.Logs())})
		return
	}

	body := gin.H{
		"success":        true,
		"status":         res.Run.Status,
		"analysis_id":    res.Run.ID,
		"article":        newArticleView(res.Draft),
		"financial_data": res.Snapshot,
		"sentiment_data": res.Report,
		"logs":           logsOf(res.Logs()),
	}
	if res.Draft != nil {
		body["article_id"] = res.Draft.ID
	}
	c.JSON(http.StatusOK, body)
}

// Review applies a human decision to a draft.
func (h *Handler) Review(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	log := domain.NewRunLog(h.deps.Now)
	draft, err := h.deps.Review.Decide(c.Request.Context(), id, req.Decision, req.Reason, log)
	if err != nil {
		h.fail(c, err, gin.H{"logs": logsOf(log.Entries())})
		return
	}

	status := "rejected"
	if draft.Status == domain.DraftPublished {
		status = "published"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  status,
		"article": newArticleView(&draft),
		"logs":    logsOf(log.Entries()),
	})
}

// CreateRun starts a queued run and returns immediately.
func (h *Handler) CreateRun(c *gin.Context) {
	if h.deps.Queued == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "queued mode is disabled"})
		return
	}
	var req orchestrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.deps.Pipeline.Run(c.Request.Context(), req.CompanyName, req.Ticker, "api", h.deps.Queued)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, res.Run)
}

// GetRun returns a run with the entities it produced.
func (h *Handler) GetRun(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	res, err := h.deps.Pipeline.Result(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CancelRun stops a queued run before it reaches review.
func (h *Handler) CancelRun(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	run, err := h.deps.Pipeline.Cancel(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(c, fmt.Errorf("invalid id %q: %w", c.Param("id"), domain.ErrNotFound), nil)
		return 0, false
	}
	return id, true
}
