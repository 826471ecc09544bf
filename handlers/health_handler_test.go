package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSubscriberCounter is a mock implementation of SubscriberCounter
type MockSubscriberCounter struct {
	mock.Mock
}

func (m *MockSubscriberCounter) Count(topic string) int {
	args := m.Called(topic)
	return args.Int(0)
}

func TestHandleHealth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("always returns healthy", func(t *testing.T) {
		handler := NewHealthHandler(nil, "book", false, logger)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()

		handler.HandleHealth(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
		assert.NotEmpty(t, data["timestamp"])
	})
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy with listener count", func(t *testing.T) {
		counter := new(MockSubscriberCounter)
		counter.On("Count", "book").Return(3)
		handler := NewHealthHandler(counter, "book", true, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
		assert.Equal(t, "book", data["topic"])
		assert.Equal(t, float64(3), data["listeners"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "loaded", checks["schema"])
		assert.Equal(t, "healthy", checks["broker"])

		counter.AssertExpectations(t)
	})

	t.Run("zero listeners is still reported", func(t *testing.T) {
		counter := new(MockSubscriberCounter)
		counter.On("Count", "book").Return(0)
		handler := NewHealthHandler(counter, "book", true, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, float64(0), data["listeners"])
	})

	t.Run("unhealthy without broker", func(t *testing.T) {
		handler := NewHealthHandler(nil, "book", true, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "unhealthy", data["status"])
		assert.NotContains(t, data, "listeners")
	})
}
