package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/database"
	"github.com/vrental/booking-service/internal/services"
)

// JobStatusReporter exposes background job status
type JobStatusReporter interface {
	GetJobStatus() map[string]interface{}
}

// SweeperRunner triggers a background job outside its schedule
type SweeperRunner interface {
	RunNow(name string) (int, error)
}

// HealthHandler serves liveness and operational endpoints
type HealthHandler struct {
	db     database.Pinger
	jobs   JobStatusReporter
	logger *logrus.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db database.Pinger, jobs JobStatusReporter, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{db: db, jobs: jobs, logger: logger}
}

// Health reports database reachability and sweeper schedule
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{
		"status":   "healthy",
		"database": "connected",
		"time":     time.Now().UTC(),
	}
	if h.jobs != nil {
		body["sweepers"] = h.jobs.GetJobStatus()
	}

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.WithError(err).Error("Health check: database unreachable")
		body["status"] = "unhealthy"
		body["database"] = "disconnected"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}

// RunSweeper runs a sweeper immediately (staff)
// POST /api/v1/admin/sweepers/:name/run
func RunSweeper(runner SweeperRunner, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		affected, err := runner.RunNow(name)
		if errors.Is(err, services.ErrUnknownJob) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_job", "code": "unknown_job", "message": err.Error()})
			return
		}
		if err != nil {
			logger.WithError(err).WithField("job", name).Error("Manual sweeper run failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sweeper_failed", "code": "sweeper_failed", "message": err.Error()})
			return
		}
		logger.WithFields(logrus.Fields{"job": name, "affected": affected}).Info("Manual sweeper run completed")
		c.JSON(http.StatusOK, gin.H{"job": name, "affected": affected})
	}
}
