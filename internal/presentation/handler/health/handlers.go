package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/duet/internal/infrastructure/json"
)

// Stats reports live signaling counts.
type Stats interface {
	Len() int
	Rooms() int
}

type Handler struct {
	stats     Stats
	startTime time.Time
	draining  atomic.Bool
}

func NewHandler(stats Stats) *Handler {
	return &Handler{
		stats:     stats,
		startTime: time.Now(),
	}
}

// Drain makes every health route report unhealthy, so load balancers stop
// routing new peers here during shutdown.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

// GetHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API, including uptime and live signaling counts
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is healthy"
// @Failure      503 {object} healthResponse "Service is unhealthy"
// @Router       /health [get]
// @Router       /healthz [get]
// @Router       /ready [get]
// @Router       /live [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.stats != nil {
		resp.Connections = h.stats.Len()
		resp.Rooms = h.stats.Rooms()
	}

	status := http.StatusOK
	if h.draining.Load() {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	json.Write(w, status, resp)
}
