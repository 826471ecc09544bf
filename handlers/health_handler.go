package handlers

import (
	"net/http"
	"time"

	"github.com/upb/book-feed/utils"
	"go.uber.org/zap"
)

// SubscriberCounter reports how many listeners a topic has.
type SubscriberCounter interface {
	Count(topic string) int
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Topic     string            `json:"topic,omitempty"`
	Listeners *int              `json:"listeners,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	topics      SubscriberCounter
	topic       string
	schemaReady bool
	logger      *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(topics SubscriberCounter, topic string, schemaReady bool, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		topics:      topics,
		topic:       topic,
		schemaReady: schemaReady,
		logger:      logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	allHealthy := true

	if h.schemaReady {
		checks["schema"] = "loaded"
	} else {
		checks["schema"] = "missing"
		allHealthy = false
	}

	if h.topics == nil {
		checks["broker"] = "not_initialized"
		allHealthy = false
	} else {
		checks["broker"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed", zap.Any("checks", checks))
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Topic:     h.topic,
	}
	if h.topics != nil {
		n := h.topics.Count(h.topic)
		response.Listeners = &n
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
