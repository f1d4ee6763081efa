// Package httpapi exposes the pipeline, review gate and listings over HTTP.
package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"MarketNewsroom/internal/ports"
	"MarketNewsroom/internal/usecase"
)

// Deps lists what the handlers call into. Queued may be nil.
type Deps struct {
	Pipeline  *usecase.Pipeline
	Direct    usecase.Strategy
	Queued    usecase.Strategy
	Review    *usecase.ReviewGate
	Symbols   *usecase.SymbolRegistry
	Snapshots ports.SnapshotRepository
	Reports   ports.ReportRepository
	Drafts    ports.DraftRepository
	Runs      ports.RunRepository
	APIToken  string
	Now       func() time.Time
	Logger    *slog.Logger
}

// Handler serves the JSON API.
type Handler struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandler validates nothing; missing collaborators surface as 500s.
func NewHandler(deps Deps) *Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{deps: deps, logger: logger.With("component", "http")}
}

// NewRouter builds a gin engine with recovery, request logging and all routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes binds the handler methods to router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/orchestrate", h.Orchestrate)
	router.POST("/orchestrate/:id/review", h.Review)

	analyses := router.Group("/analyses")
	{
		analyses.GET("", h.ListRuns)
		analyses.GET("/:id", h.GetRun)
		analyses.POST("", h.requireToken(), h.CreateRun)
		analyses.POST("/:id/cancel", h.requireToken(), h.CancelRun)
	}

	router.GET("/symbols", h.ListSymbols)
	router.PATCH("/symbols/:id", h.UpdateSymbol)
	router.GET("/snapshots", h.ListSnapshots)
	router.GET("/reports", h.ListReports)
	router.GET("/financial-data/symbol/:symbol/latest", h.LatestSnapshot)
	router.GET("/sentiment-analysis/symbol/:symbol/latest", h.LatestReport)
	router.GET("/drafts", h.ListDrafts)
	router.GET("/drafts/:id", h.GetDraft)
}

// requireToken accepts "Authorization: Bearer <token>". With no token
// configured every call is refused.
func (h *Handler) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if h.deps.APIToken == "" || !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(h.deps.APIToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		h.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started))
	}
}
