package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// parseFilter reads symbol, status, from, to, page and per_page.
func parseFilter(c *gin.Context) (ports.ListFilter, error) {
	filter := ports.ListFilter{
		Ticker: domain.CanonicalTicker(c.Query("symbol")),
		Status: strings.TrimSpace(c.Query("status")),
		Page:   ports.Page{Number: 1, PerPage: defaultPerPage},
	}

	var err error
	if filter.From, err = parseDate(c.Query("from"), false); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate(c.Query("to"), true); err != nil {
		return filter, err
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, fmt.Errorf("to must not precede from")
	}

	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("invalid page %q", v)
		}
		filter.Page.Number = n
	}
	if v := c.Query("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, fmt.Errorf("invalid per_page %q", v)
		}
		filter.Page.PerPage = min(n, maxPerPage)
	}
	return filter, nil
}

// parseDate accepts RFC 3339 or a plain date; a plain "to" date covers the whole day.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func listResponse[T any](c *gin.Context, filter ports.ListFilter, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":     items,
		"page":     filter.Page.Number,
		"per_page": filter.Page.PerPage,
	})
}

// ListSymbols lists registered symbols.
func (h *Handler) ListSymbols(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	items, err := h.deps.Symbols.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	listResponse(c, filter, items)
}

type symbolFlags struct {
	Active  *bool `json:"is_active"`
	Default *bool `json:"is_default"`
}

// UpdateSymbol toggles the active and default flags.
func (h *Handler) UpdateSymbol(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req symbolFlags
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Active == nil && req.Default == nil {
		h.badRequest(c, "is_active or is_default is required")
		return
	}
	sym, err := h.deps.Symbols.UpdateFlags(c.Request.Context(), id, req.Active, req.Default)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, sym)
}

// ListSnapshots lists market snapshots.
func (h *Handler) ListSnapshots(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	items, err := h.deps.Snapshots.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	listResponse(c, filter, items)
}

// latest answers with the newest item for the :symbol path parameter, or 404.
func latest[T any](h *Handler, c *gin.Context, kind string, list func(context.Context, ports.ListFilter) ([]T, error)) {
	ticker := domain.CanonicalTicker(c.Param("symbol"))
	if ticker == "" {
		h.badRequest(c, "symbol is required")
		return
	}
	items, err := list(c.Request.Context(), ports.ListFilter{Ticker: ticker, Page: ports.Page{Number: 1, PerPage: 1}})
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	if len(items) == 0 {
		h.fail(c, fmt.Errorf("%s for %s: %w", kind, ticker, domain.ErrNotFound), nil)
		return
	}
	c.JSON(http.StatusOK, items[0])
}

// LatestSnapshot returns the most recent snapshot of a symbol.
func (h *Handler) LatestSnapshot(c *gin.Context) {
	latest(h, c, "financial data", h.deps.Snapshots.List)
}

// LatestReport returns the most recent sentiment report of a symbol.
func (h *Handler) LatestReport(c *gin.Context) {
	latest(h, c, "sentiment analysis", h.deps.Reports.List)
}

// ListReports lists sentiment reports.
func (h *Handler) ListReports(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	items, err := h.deps.Reports.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	listResponse(c, filter, items)
}

// ListDrafts lists drafts, usually filtered by status.
func (h *Handler) ListDrafts(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	items, err := h.deps.Drafts.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	listResponse(c, filter, items)
}

// GetDraft returns one draft.
func (h *Handler) GetDraft(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	draft, err := h.deps.Drafts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// ListRuns lists pipeline runs.
func (h *Handler) ListRuns(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}
	items, err := h.deps.Runs.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	listResponse(c, filter, items)
}
