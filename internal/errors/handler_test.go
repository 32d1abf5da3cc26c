package errors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macpulse/internal/transmission"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func decodeProblem(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	type horizonRequest struct {
		Horizon int `validate:"min=1"`
	}
	fieldErr := validator.New().Struct(horizonRequest{})
	require.Error(t, fieldErr)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"canceled wrapped", fmt.Errorf("robustness: %w", context.Canceled), http.StatusGatewayTimeout, TypeTimeout},
		{"api error", ErrReportNotFound, http.StatusNotFound, TypeReportNotFound},
		{"wrapped api error", fmt.Errorf("handler: %w", ErrEstimateRunning), http.StatusConflict, TypeEstimateRunning},
		{"superseded", ErrReportSuperseded, http.StatusConflict, TypeReportSuperseded},
		{"invalid json", New(http.StatusBadRequest, CodeInvalidJSON, "bad json"), http.StatusBadRequest, TypeValidation},
		{"unknown view", NotFoundError("matrix view"), http.StatusNotFound, TypeNotFound},
		{"max bytes", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"validator", fieldErr, http.StatusBadRequest, TypeValidation},
		{
			name:       "invalid series",
			err:        fmt.Errorf("run: %w", &transmission.ValidationError{Field: "series", Message: "missing pillar policy"}),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeInvalidSeries,
		},
		{"app validation", NewAppValidationError("bad params", nil), http.StatusBadRequest, TypeValidation},
		{"app parsing", NewParsingError("bad csv", nil), http.StatusUnprocessableEntity, TypeDataParsing},
		{"app not found", NewNotFoundError("report"), http.StatusNotFound, TypeNotFound},
		{"app estimation", NewEstimationError("failed", nil), http.StatusInternalServerError, TypeEstimationFailed},
		{"app storage", NewStorageError("failed", nil), http.StatusInternalServerError, TypeStorage},
		{"plain error", fmt.Errorf("something odd"), http.StatusInternalServerError, TypeInternal},
	}

	logger, _ := newTestLogger()
	h := NewErrorHandler(logger, false)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/transmission/estimate", nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, r)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/v1/transmission/estimate", problem.Instance)
		})
	}
}

func TestErrorHandler_ValidatorDetails(t *testing.T) {
	type cascadeRequest struct {
		Periods int `validate:"min=1,max=520"`
	}
	err := validator.New().Struct(cascadeRequest{Periods: 1000})
	require.Error(t, err)

	logger, _ := newTestLogger()
	problem := NewErrorHandler(logger, false).ErrorToProblem(err, httptest.NewRequest(http.MethodPost, "/", nil))

	details, ok := problem.Extensions["errors"].([]ValidationError)
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "Periods", details[0].Field)
	assert.Contains(t, details[0].Message, "max=520")
}

func TestErrorHandler_HandleError(t *testing.T) {
	logger, logs := newTestLogger()
	h := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/transmission/matrix", nil)
	h.HandleError(w, r, ErrReportNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeProblem(t, w.Body.Bytes())
	assert.Equal(t, TypeReportNotFound, body["type"])
	assert.Equal(t, "REPORT_NOT_FOUND", body["error_code"])
	assert.Contains(t, body, "trace_id")
	assert.Contains(t, body, "stack")
	assert.Contains(t, logs.String(), `"level":"WARN"`)

	// nil errors write nothing
	w = httptest.NewRecorder()
	h.HandleError(w, r, nil)
	assert.Equal(t, 0, w.Body.Len())
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := newTestLogger()
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	h.HandlePanic(w, httptest.NewRequest(http.MethodGet, "/boom", nil), "boom")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeProblem(t, w.Body.Bytes())
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body, "panic")
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := NewErrorHandler(nil, false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/v1/transmission/latest", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	body := decodeProblem(t, w.Body.Bytes())
	assert.True(t, strings.Contains(body["detail"].(string), "DELETE"))
}
