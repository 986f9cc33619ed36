package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/lock"
)

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		verr    *custom_errors.ValidationError
		invalid *custom_errors.InvalidStateError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": verr.Messages()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error(), "status": invalid.Current})
	case errors.Is(err, custom_errors.ErrScheduledPostNotFound),
		errors.Is(err, custom_errors.ErrJobNotFound),
		errors.Is(err, custom_errors.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, lock.ErrLockTimeout):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduled post is busy, try again"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// parseTimeParam reads an optional RFC3339 query parameter.
func parseTimeParam(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s, want RFC3339", name)
	}
	return &t, nil
}
