package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/internal/gateway"
	"github.com/RezaEskandarii/postfire/internal/scheduler"
	"github.com/RezaEskandarii/postfire/types"
)

// PostService is the scheduling surface exposed over HTTP.
type PostService interface {
	SchedulePost(ctx context.Context, req scheduler.ScheduleRequest) (string, error)
	UpdateScheduledPost(ctx context.Context, id string, change types.ScheduleChange) (*types.ScheduledPost, error)
	CancelScheduledPost(ctx context.Context, id string) error
	GetScheduledPost(ctx context.Context, id string) (*types.ScheduledPost, error)
	GetScheduledPosts(ctx context.Context, userID string, dateRange types.DateRange) ([]types.ScheduledPost, error)
	GetStats(ctx context.Context) (types.JobStats, error)
	ValidateContent(platforms []types.Platform, content types.Content) map[types.Platform]gateway.ValidationResult
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HttpRouteHandler struct {
	service  PostService
	checks   map[string]HealthCheck
	apiToken string
	Port     uint
	log      zerolog.Logger
}

func NewRouteHandler(service PostService, checks map[string]HealthCheck, apiToken string, port uint, log zerolog.Logger) *HttpRouteHandler {
	return &HttpRouteHandler{
		service:  service,
		checks:   checks,
		apiToken: apiToken,
		Port:     port,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Router builds the gin engine with every route registered.
func (handler *HttpRouteHandler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), handler.requestLogger())

	engine.GET("/healthz", handler.healthz)
	engine.GET("/readyz", handler.readyz)

	api := engine.Group("/api/v1", authMiddleware(handler.apiToken))
	api.POST("/scheduled-posts", handler.schedulePost)
	api.GET("/scheduled-posts", handler.listScheduledPosts)
	api.GET("/scheduled-posts/:id", handler.getScheduledPost)
	api.PATCH("/scheduled-posts/:id", handler.updateScheduledPost)
	api.DELETE("/scheduled-posts/:id", handler.cancelScheduledPost)
	api.POST("/validate", handler.validateContent)
	api.GET("/stats", handler.stats)
	return engine
}

// Serve listens until ctx is done, then drains in-flight requests.
func (handler *HttpRouteHandler) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", handler.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		handler.log.Info().Str("addr", srv.Addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (handler *HttpRouteHandler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		var event *zerolog.Event
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = handler.log.Error().Str("error", c.Errors.String())
		} else {
			event = handler.log.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

type scheduleRequest struct {
	UserID        string    `json:"userId" binding:"required"`
	PostID        string    `json:"postId" binding:"required"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Platforms     []string  `json:"platforms" binding:"required"`
}

// POST /api/v1/scheduled-posts
func (handler *HttpRouteHandler) schedulePost(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	id, err := handler.service.SchedulePost(c.Request.Context(), scheduler.ScheduleRequest{
		UserID:        req.UserID,
		PostID:        req.PostID,
		ScheduledTime: req.ScheduledTime,
		Platforms:     req.Platforms,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type updateRequest struct {
	ScheduledTime *time.Time `json:"scheduledTime"`
	Platforms     []string   `json:"platforms"`
}

// PATCH /api/v1/scheduled-posts/:id
func (handler *HttpRouteHandler) updateScheduledPost(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.ScheduledTime == nil && req.Platforms == nil {
		badRequest(c, "nothing to update")
		return
	}

	post, err := handler.service.UpdateScheduledPost(c.Request.Context(), c.Param("id"), types.ScheduleChange{
		ScheduledTime: req.ScheduledTime,
		Platforms:     req.Platforms,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DELETE /api/v1/scheduled-posts/:id
func (handler *HttpRouteHandler) cancelScheduledPost(c *gin.Context) {
	if err := handler.service.CancelScheduledPost(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/scheduled-posts/:id
func (handler *HttpRouteHandler) getScheduledPost(c *gin.Context) {
	post, err := handler.service.GetScheduledPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// GET /api/v1/scheduled-posts?user_id=...&from=...&to=...
func (handler *HttpRouteHandler) listScheduledPosts(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		badRequest(c, "user_id is required")
		return
	}
	from, err := parseTimeParam(c, "from")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := parseTimeParam(c, "to")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		badRequest(c, "to must not be before from")
		return
	}

	posts, err := handler.service.GetScheduledPosts(c.Request.Context(), userID, types.DateRange{From: from, To: to})
	if err != nil {
		writeError(c, err)
		return
	}
	if posts == nil {
		posts = []types.ScheduledPost{}
	}
	c.JSON(http.StatusOK, gin.H{"scheduledPosts": posts})
}

type validateRequest struct {
	Platforms []string      `json:"platforms" binding:"required"`
	Content   types.Content `json:"content"`
}

// POST /api/v1/validate
func (handler *HttpRouteHandler) validateContent(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	platforms, err := types.ParsePlatforms(req.Platforms)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	results := handler.service.ValidateContent(platforms, req.Content)
	valid := true
	for _, r := range results {
		valid = valid && r.Valid
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid, "results": results})
}

// GET /api/v1/stats
func (handler *HttpRouteHandler) stats(c *gin.Context) {
	stats, err := handler.service.GetStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /healthz
func (handler *HttpRouteHandler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /readyz
func (handler *HttpRouteHandler) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range handler.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
