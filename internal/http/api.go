package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"conduit/internal/exporter"
	"conduit/internal/repository"
	"conduit/internal/service"
	"conduit/internal/storage"
)

// Options carries the services a Handler serves. Exporter and Storage are
// nil when no export bucket is configured.
type Options struct {
	Users      service.UserService
	Articles   service.ArticleService
	Roster     service.RosterService
	Exports    service.ExportService
	Exporter   exporter.Manager
	Storage    storage.Service
	Bucket     string
	KeyPrefix  string
	PresignTTL time.Duration
	JWTSecret  string
	TokenTTL   time.Duration
	Logger     logrus.FieldLogger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users      service.UserService
	articles   service.ArticleService
	roster     service.RosterService
	exports    service.ExportService
	exporter   exporter.Manager
	storage    storage.Service
	bucket     string
	keyPrefix  string
	presignTTL time.Duration
	tokens     *tokenIssuer
	logger     logrus.FieldLogger
}

func NewHandler(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &Handler{
		users:      opts.Users,
		articles:   opts.Articles,
		roster:     opts.Roster,
		exports:    opts.Exports,
		exporter:   opts.Exporter,
		storage:    opts.Storage,
		bucket:     opts.Bucket,
		keyPrefix:  opts.KeyPrefix,
		presignTTL: opts.PresignTTL,
		tokens:     newTokenIssuer(opts.JWTSecret, opts.TokenTTL),
		logger:     opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		api.POST("/users", h.register)
		api.POST("/users/login", h.login)

		api.GET("/articles", h.listArticles)
		api.GET("/articles/:slug", h.getArticle)
		api.POST("/articles", h.requireAuth(), h.createArticle)
		api.POST("/articles/:slug/favorite", h.requireAuth(), h.favoriteArticle)
		api.DELETE("/articles/:slug/favorite", h.requireAuth(), h.unfavoriteArticle)

		api.GET("/roster", h.getRoster)
		api.POST("/roster/exports", h.requireAuth(), h.createExport)
		api.GET("/roster/exports", h.listExports)
		api.GET("/roster/exports/objects", h.listExportObjects)
		api.GET("/roster/exports/:id", h.getExport)

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(started),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

// writeError maps service and repository errors onto status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidRegistrationPassword):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUserAlreadyExists), errors.Is(err, repository.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithField("path", c.FullPath()).Errorf("request error: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}
