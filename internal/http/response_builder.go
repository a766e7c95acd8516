// This file implements the Builder Pattern for constructing JSON responses.
// It keeps status codes, headers and the common body fields ("message",
// "error", "warnings") consistent across handlers.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
// A response body is either a raw payload set with Data or an object
// assembled from fields.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
	fields     map[string]any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		fields:     make(map[string]any),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the whole body, replacing any fields.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Field sets one member of the body object.
func (b *JSONResponseBuilder) Field(name string, v any) *JSONResponseBuilder {
	b.fields[name] = v
	return b
}

func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Field("message", msg)
}

// Warnings attaches non fatal problems. Nothing is added when ws is empty.
func (b *JSONResponseBuilder) Warnings(ws []core.Warning) *JSONResponseBuilder {
	if len(ws) > 0 {
		b.fields["warnings"] = ws
	}
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	var body any = b.fields
	if b.data != nil {
		body = b.data
	}

	payload, err := json.Marshal(body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Field("error", message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}
