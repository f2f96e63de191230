package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"expenses/internal/core"
	"expenses/internal/log"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building enveloped JSON
// responses. Success follows the status code.
type JSONResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Data(data any) *JSONResponseBuilder {
	b.envelope.Data = data
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	b.envelope.Message = msg
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	b.envelope.Success = b.statusCode < http.StatusBadRequest
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.envelope)
}

// ErrorResponse creates an unsuccessful envelope carrying message.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Message(message)
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

// ServiceErrorResponse maps a service error to a response. Validation
// messages go back to the caller verbatim; store failures are logged and
// replaced by fallback.
func ServiceErrorResponse(r *http.Request, err error, fallback string) *JSONResponseBuilder {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentHTTP)

	switch errType := errorType(err); errType {
	case log.ErrorTypeValidation:
		var ve *core.ValidationError
		errors.As(err, &ve)
		logger.DebugContext(ctx, "Request rejected",
			log.NewFields().WithOperation(log.OpValidate).WithErrorType(errType).WithError(err).ToSlice()...)
		return BadRequestError(ve.Message)
	case log.ErrorTypeNotFound:
		logger.DebugContext(ctx, "Expense not found",
			log.NewFields().WithOperation(log.OpRead).WithErrorType(errType).ToSlice()...)
		return NotFoundError("Expense not found")
	default:
		log.NewStructuredLogger(logger).LogError(ctx, fallback, err,
			log.ComponentHTTP, r.Method+" "+r.URL.Path,
			log.NewFields().WithErrorType(errType))
		return InternalServerError(fallback)
	}
}

func errorType(err error) string {
	var se *core.StoreError
	switch {
	case core.IsValidation(err):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return log.ErrorTypeTimeout
	case errors.As(err, &se):
		return log.ErrorTypeDatabase
	}
	return log.ErrorTypeInternal
}
