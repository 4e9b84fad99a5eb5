package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrental/booking-service/internal/services"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

type stubJobs struct {
	affected int
	err      error
}

func (j stubJobs) GetJobStatus() map[string]interface{} {
	return map[string]interface{}{"running": true, "job_count": 2}
}

func (j stubJobs) RunNow(name string) (int, error) { return j.affected, j.err }

func TestHealthHandler(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		router := gin.New()
		router.GET("/health", NewHealthHandler(stubPinger{}, stubJobs{}, quietLogger()).Health)

		w := doJSON(t, router, "GET", "/health", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.NotNil(t, body["sweepers"])
	})

	t.Run("Database down", func(t *testing.T) {
		router := gin.New()
		router.GET("/health", NewHealthHandler(stubPinger{err: errors.New("dial tcp: refused")}, nil, quietLogger()).Health)

		w := doJSON(t, router, "GET", "/health", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decode(t, w)["status"])
	})
}

func TestRunSweeper(t *testing.T) {
	tests := []struct {
		name   string
		jobs   stubJobs
		status int
	}{
		{"Ran", stubJobs{affected: 3}, http.StatusOK},
		{"Unknown", stubJobs{err: services.ErrUnknownJob}, http.StatusNotFound},
		{"Failed", stubJobs{err: errors.New("bulk read failed")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/sweepers/:name/run", RunSweeper(tt.jobs, quietLogger()))

			w := doJSON(t, router, "POST", "/sweepers/order-expirer/run", "", nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
