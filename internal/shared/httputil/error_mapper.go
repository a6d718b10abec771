package httputil

import (
	"context"
	"errors"
	"net/http"
)

// WebSocket close codes used when an error ends a connection.
const (
	CloseNormal      = 1000
	CloseGoingAway   = 1001
	ClosePolicy      = 1008
	CloseServerError = 1011
)

// ErrorInfo is what a single error turns into at the edge: an HTTP status and message for
// request/response endpoints and a close code for WebSocket connections.
type ErrorInfo struct {
	Status    int
	CloseCode int
	Message   string
}

// ErrorMapping represents a single error to status/message mapping.
type ErrorMapping struct {
	Error     error
	Status    int
	CloseCode int
	Message   string
}

// ErrorMapper maps domain errors to HTTP status codes, close codes and messages.
// It provides a centralized way to handle error mapping across handlers.
type ErrorMapper struct {
	mappings []ErrorMapping
	fallback ErrorInfo
}

// NewErrorMapper creates a new ErrorMapper with default settings.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{
		fallback: ErrorInfo{
			Status:    http.StatusInternalServerError,
			CloseCode: CloseServerError,
			Message:   "internal server error",
		},
	}
}

// WithMapping adds an error mapping. closeCode 0 keeps the default close code.
func (m *ErrorMapper) WithMapping(err error, status, closeCode int, message string) *ErrorMapper {
	m.mappings = append(m.mappings, ErrorMapping{
		Error:     err,
		Status:    status,
		CloseCode: closeCode,
		Message:   message,
	})
	return m
}

// WithDefault sets the status and message for unmatched errors.
func (m *ErrorMapper) WithDefault(status int, message string) *ErrorMapper {
	m.fallback.Status = status
	m.fallback.Message = message
	return m
}

// Map converts an error to its edge representation. Mappings are checked in registration
// order; the first errors.Is match wins.
func (m *ErrorMapper) Map(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{Status: http.StatusOK, CloseCode: CloseNormal}
	}

	// context errors first, a shutdown is never the caller's fault
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorInfo{Status: http.StatusGatewayTimeout, CloseCode: CloseGoingAway, Message: "request timeout"}
	}
	if errors.Is(err, context.Canceled) {
		return ErrorInfo{Status: http.StatusServiceUnavailable, CloseCode: CloseGoingAway, Message: "request cancelled"}
	}

	for _, mapping := range m.mappings {
		if errors.Is(err, mapping.Error) {
			info := ErrorInfo{Status: mapping.Status, CloseCode: mapping.CloseCode, Message: mapping.Message}
			if info.CloseCode == 0 {
				info.CloseCode = m.fallback.CloseCode
			}
			return info
		}
	}

	return m.fallback
}

// CloseCode is shorthand for Map(err).CloseCode.
func (m *ErrorMapper) CloseCode(err error) int {
	return m.Map(err).CloseCode
}
