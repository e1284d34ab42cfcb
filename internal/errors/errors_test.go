package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name             string
		err              *AppError
		expectedCategory ErrorCategory
		expectedStatus   int
		expectedPrefix   string
	}{
		{
			name:             "validation",
			err:              NewValidationError("No image provided"),
			expectedCategory: CategoryValidation,
			expectedStatus:   http.StatusBadRequest,
			expectedPrefix:   "[VALIDATION_ERROR]",
		},
		{
			name:             "payload too large",
			err:              NewPayloadTooLargeError(1024),
			expectedCategory: CategoryValidation,
			expectedStatus:   http.StatusRequestEntityTooLarge,
			expectedPrefix:   "[VALIDATION_ERROR]",
		},
		{
			name:             "network",
			err:              NewNetworkError("connection failed", fmt.Errorf("connection refused")),
			expectedCategory: CategoryNetwork,
			expectedStatus:   http.StatusBadGateway,
			expectedPrefix:   "[NETWORK_ERROR]",
		},
		{
			name:             "timeout",
			err:              NewTimeoutError("classifier timed out", nil),
			expectedCategory: CategoryTimeout,
			expectedStatus:   http.StatusGatewayTimeout,
			expectedPrefix:   "[TIMEOUT_ERROR]",
		},
		{
			name:             "rate limit",
			err:              NewRateLimitError("30"),
			expectedCategory: CategoryRateLimit,
			expectedStatus:   http.StatusTooManyRequests,
			expectedPrefix:   "[RATE_LIMIT_EXCEEDED]",
		},
		{
			name:             "external api",
			err:              NewExternalAPIError("classifier", fmt.Errorf("status 500")),
			expectedCategory: CategoryExternalAPI,
			expectedStatus:   http.StatusBadGateway,
			expectedPrefix:   "[NETWORK_ERROR]",
		},
		{
			name:             "classification",
			err:              NewClassificationError("Face could not be detected"),
			expectedCategory: CategoryClassification,
			expectedStatus:   http.StatusUnprocessableEntity,
			expectedPrefix:   "[CLASSIFICATION_ERROR]",
		},
		{
			name:             "configuration",
			err:              NewConfigurationError("CLASSIFIER_URL is not set", nil),
			expectedCategory: CategoryConfiguration,
			expectedStatus:   http.StatusServiceUnavailable,
			expectedPrefix:   "[CONFIGURATION_ERROR]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.expectedCategory, tt.err.Category)
			assert.Equal(t, tt.expectedStatus, tt.err.HTTPStatus)
			assert.Contains(t, tt.err.Error(), tt.expectedPrefix)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		expectedCategory ErrorCategory
	}{
		{name: "keeps app errors", err: NewValidationError("bad"), expectedCategory: CategoryValidation},
		{name: "unwraps wrapped app errors", err: fmt.Errorf("detect: %w", NewClassificationError("no face")), expectedCategory: CategoryClassification},
		{name: "context cancellation", err: context.Canceled, expectedCategory: CategoryTimeout},
		{name: "context deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), expectedCategory: CategoryTimeout},
		{name: "connection refused", err: fmt.Errorf("dial tcp: connection refused"), expectedCategory: CategoryNetwork},
		{name: "i/o timeout", err: fmt.Errorf("read tcp: i/o timeout"), expectedCategory: CategoryTimeout},
		{name: "anything else", err: fmt.Errorf("boom"), expectedCategory: CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.expectedCategory, appErr.Category)
		})
	}

	assert.Nil(t, ToAppError(nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(NewNetworkError("down", nil)))
	assert.True(t, IsRetryableError(NewTimeoutError("slow", nil)))
	assert.True(t, IsRetryableError(NewExternalAPIError("classifier", nil)))
	assert.False(t, IsRetryableError(NewValidationError("bad image")))
	assert.False(t, IsRetryableError(NewClassificationError("no face")))
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	appErr := NewNetworkError("connection failed", cause)
	assert.ErrorIs(t, appErr, cause)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	cause := fmt.Errorf("inner")
	wrapped := WrapError(cause, "reading frame %d", 3)
	assert.EqualError(t, wrapped, "reading frame 3: inner")
	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(NewClassificationError("Face could not be detected"))
	})
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("renders the last error", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/fail", nil)
		req.Header.Set("X-Request-ID", "req-1")
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Failed to detect emotion", body["error"])
		assert.Equal(t, "classification", body["category"])
		assert.Equal(t, "req-1", body["request_id"])
	})

	t.Run("leaves successful responses alone", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/ok", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("frame decoder exploded")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "internal", body["category"])
}
