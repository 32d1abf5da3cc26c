package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried by APIError. The handler maps each onto a problem type.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeMissingContentType = "MISSING_CONTENT_TYPE"
	CodeUnsupportedMedia   = "UNSUPPORTED_MEDIA_TYPE"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeReportNotFound     = "REPORT_NOT_FOUND"
	CodeEstimateRunning    = "ESTIMATE_RUNNING"
	CodeReportSuperseded   = "REPORT_SUPERSEDED"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeEstimationFailed   = "ESTIMATION_FAILED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIError is an error with a fixed HTTP status, used where a handler or
// middleware already knows the response it wants.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError names one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload for a multi-field rejection.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	e := New(statusCode, errorCode, message)
	e.Details = details
	return e
}

var (
	ErrReportNotFound   = New(http.StatusNotFound, CodeReportNotFound, "No transmission report has been produced yet")
	ErrEstimateRunning  = New(http.StatusConflict, CodeEstimateRunning, "An estimation is already running")
	ErrReportSuperseded = New(http.StatusConflict, CodeReportSuperseded, "A newer run replaced the report; retry against it")
)

// InvalidRequestWithError wraps a decode or read failure as a 400.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation rejects a single field.
func ErrValidation(field, message string) *APIError {
	return NewValidationErrors([]ValidationError{{Field: field, Message: message}})
}

// NewValidationErrors rejects several fields at once.
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errs})
}

// NotFoundError reports a missing resource, such as an unknown matrix view.
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}
