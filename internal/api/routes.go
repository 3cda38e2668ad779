package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/ai"
	"decision-matrix/backend/internal/cache"
	"decision-matrix/backend/internal/catalog"
	"decision-matrix/backend/internal/matrix"
	"decision-matrix/backend/internal/publish"
	"decision-matrix/backend/internal/session"
	"decision-matrix/backend/internal/store"
)

// Config defines server dependencies.
type Config struct {
	Repository store.Repository
	// Runs defaults to Repository when it also stores evaluation runs.
	Runs           store.RunStore
	Assistant      *ai.Assistant
	Catalog        catalog.Catalog
	Publisher      publish.Publisher
	Cache          cache.Cache
	Concurrency    int
	AllowedOrigins []string
}

// Server wires HTTP handlers to the decision session.
type Server struct {
	repo           store.Repository
	runs           store.RunStore
	manager        *session.Manager
	assistant      *ai.Assistant
	catalog        catalog.Catalog
	publisher      publish.Publisher
	cache          cache.Cache
	allowedOrigins []string
	evalNotifier   *EvaluationNotifier
	jobMu          sync.Mutex
	activeJob      *evaluationJob
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Repository == nil {
		return nil, errors.New("repository required")
	}
	runs := cfg.Runs
	if runs == nil {
		if rs, ok := cfg.Repository.(store.RunStore); ok {
			runs = rs
		}
	}
	c := cfg.Cache
	if c == nil {
		c = cache.Noop{}
	}

	opts := []session.Option{session.WithConcurrency(cfg.Concurrency)}
	if cfg.Assistant.Enabled() {
		opts = append(opts, session.WithAssistant(cfg.Assistant))
		logrus.WithField("providers", cfg.Assistant.Gateway().Providers()).Info("ai assistant enabled")
	} else {
		logrus.Info("ai assistant disabled - no provider configured")
	}
	if cfg.Catalog != nil {
		opts = append(opts, session.WithCatalog(cfg.Catalog))
	}

	return &Server{
		repo:           cfg.Repository,
		runs:           runs,
		manager:        session.NewManager(cfg.Repository, opts...),
		assistant:      cfg.Assistant,
		catalog:        cfg.Catalog,
		publisher:      cfg.Publisher,
		cache:          c,
		allowedOrigins: cfg.AllowedOrigins,
		evalNotifier:   NewEvaluationNotifier(),
	}, nil
}

// Manager exposes the session the server edits.
func (s *Server) Manager() *session.Manager {
	return s.manager
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api")
	{
		api.GET("/templates", s.handleTemplates)
		api.GET("/decisions", s.handleListDecisions)
		api.POST("/decisions", s.handleCreateDecision)
		api.GET("/decisions/:id", s.handleGetDecision)
		api.POST("/decisions/:id/open", s.handleOpenDecision)
		api.DELETE("/decisions/:id", s.handleDeleteDecision)
		api.GET("/export.json", s.handleExportJSON)
		api.POST("/import", s.handleImport)

		api.GET("/catalog/categories", s.handleCatalogCategories)
		api.GET("/catalog/products", s.handleCatalogProducts)
		api.GET("/catalog/products/:id", s.handleCatalogProduct)

		api.DELETE("/ai/cache", s.handleClearCache)

		api.GET("/evaluate/status", s.handleEvaluateStatus)
		api.DELETE("/evaluate/:jobID", s.handleCancelEvaluate)
		api.GET("/evaluate/stream", s.handleEvaluateStream)
		api.GET("/runs/:id", s.handleGetRun)
	}

	sess := api.Group("/session")
	{
		sess.GET("", s.handleGetSession)
		sess.DELETE("", s.handleCloseSession)
		sess.PATCH("", s.handleUpdateDetails)
		sess.PUT("/step", s.handleGoTo)

		sess.POST("/criteria", s.handleAddCriteria)
		sess.PUT("/criteria/order", s.handleReorderCriteria)
		sess.PATCH("/criteria/:cid", s.handleUpdateCriterion)
		sess.DELETE("/criteria/:cid", s.handleRemoveCriterion)
		sess.POST("/criteria/:cid/move", s.handleMoveCriterion)

		sess.POST("/alternatives", s.handleAddAlternatives)
		sess.POST("/alternatives/products", s.handleAddProducts)
		sess.PUT("/alternatives/order", s.handleReorderAlternatives)
		sess.PATCH("/alternatives/:aid", s.handleUpdateAlternative)
		sess.DELETE("/alternatives/:aid", s.handleRemoveAlternative)
		sess.POST("/alternatives/:aid/move", s.handleMoveAlternative)

		sess.PUT("/scores", s.handleSetScores)
		sess.PUT("/scores/:aid/:cid", s.handleSetScore)
		sess.DELETE("/scores/:aid/:cid", s.handleClearScore)

		sess.GET("/results", s.handleResults)
		sess.GET("/results.csv", s.handleResultsCSV)

		sess.POST("/ai/criteria", s.handleSuggestCriteria)
		sess.POST("/ai/alternatives", s.handleSuggestAlternatives)
		sess.POST("/ai/products", s.handleSuggestProducts)
		sess.POST("/ai/score", s.handleEvaluateCell)
		sess.POST("/ai/insights", s.handleInsights)
		sess.POST("/evaluate", s.handleEvaluate)

		sess.POST("/publish", s.handlePublish)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	resp := ConfigResponse{
		AIEnabled:      s.assistant.Enabled(),
		Providers:      []string{},
		Templates:      len(matrix.Templates()),
		PublishEnabled: s.publisher != nil,
		Categories:     []string{},
	}
	if resp.AIEnabled {
		resp.Providers = s.assistant.Gateway().Providers()
		resp.DefaultProvider = s.assistant.Gateway().DefaultProvider()
	}
	if s.catalog != nil {
		resp.Categories = s.catalog.Categories()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleClearCache(c *gin.Context) {
	if err := s.cache.Clear(c.Request.Context()); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	logrus.Info("ai response cache cleared")
	c.Status(http.StatusNoContent)
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Warn("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// fail renders err with the status its kind maps to.
func (s *Server) fail(c *gin.Context, err error) {
	s.renderError(c, statusFor(err), err)
}

func statusFor(err error) int {
	var (
		httpErr    *ai.HTTPError
		publishErr *publish.Error
	)
	switch {
	case matrix.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, session.ErrCriterionNotFound),
		errors.Is(err, session.ErrAlternativeNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoDecision),
		errors.Is(err, session.ErrStepBlocked),
		errors.Is(err, session.ErrStaleSession):
		return http.StatusConflict
	case errors.Is(err, ai.ErrProviderUnavailable),
		errors.Is(err, publish.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ai.ErrProviderTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &httpErr),
		errors.As(err, &publishErr),
		errors.Is(err, ai.ErrUnparsableResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// bindJSON decodes the request body, rendering a 400 on failure.
func (s *Server) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func (s *Server) bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	return s.bindJSON(c, v)
}

func trimmedParam(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}
