package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProviderUnavailableIsRetryable(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("analyze: %w", NewProviderUnavailableError("analyze", cause))

	assert.True(t, IsProviderUnavailable(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, IsStoreError(err))
}

func TestStoreErrorIsNotRetryable(t *testing.T) {
	err := NewStoreError("insert entry", stderrors.New("disk full"))

	assert.True(t, IsStoreError(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, CodeStoreError, err.Code)
}

func TestRateLimitedRoundsRetryAfterUp(t *testing.T) {
	err := NewRateLimitedError(1500 * time.Millisecond)

	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 2, err.Details["retry_after_seconds"])
	assert.Equal(t, 1, NewRateLimitedError(0).Details["retry_after_seconds"])
}

func TestWrapKeepsAppErrorType(t *testing.T) {
	err := Wrap(NewEntryNotFoundError(), "update entry")

	assert.True(t, IsNotFound(err))
	assert.True(t, HasCode(err, CodeEntryNotFound))
	assert.Contains(t, err.Error(), "update entry")
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/diary/2024.09.05", nil)
	req.Header.Set("X-Request-ID", "req-1")

	h.Handle(rec, req, NewEntryNotFoundError())

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(ErrorTypeNotFound), resp.Error.Type)
	assert.Equal(t, CodeEntryNotFound, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}

func TestErrorHandlerHidesPlainErrors(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.Handle(rec, req, stderrors.New("secret detail"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
