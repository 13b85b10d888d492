package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/session"
	"github.com/MJE43/arcade-session-go/internal/settle"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error text
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler maps session and settlement errors onto HTTP responses.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger}
}

// classify picks the status and error type for err.
func classify(err error) (int, string, string) {
	var (
		validation  *session.ValidationError
		unavailable *session.UnavailableError
		settlement  *session.SettlementError
		remote      *settle.RemoteError
		transport   *settle.TransportError
		engineErr   EngineError
	)
	switch {
	case errors.As(err, &engineErr):
		return http.StatusInternalServerError, engineErr.Type, engineErr.Message
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrTypeValidation, validation.Err.Error()
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, ErrTypeGameUnavailable, unavailable.Message
	case errors.Is(err, session.ErrNoIdentity):
		return http.StatusUnauthorized, ErrTypeNoIdentity, "No player identity configured"
	case errors.Is(err, session.ErrWrongPhase):
		return http.StatusConflict, ErrTypeWrongPhase, err.Error()
	case errors.Is(err, session.ErrClosed):
		return http.StatusConflict, ErrTypeSessionClosed, "Session was closed"
	case errors.As(err, &settlement):
		return http.StatusBadGateway, ErrTypeSettlement, settle.Message(settlement.Err)
	case errors.As(err, &remote):
		return http.StatusBadGateway, ErrTypeSettlement, remote.Message
	case errors.Is(err, settle.ErrMalformedResponse):
		return http.StatusBadGateway, ErrTypeSettlement, settle.Message(err)
	case errors.As(err, &transport):
		return http.StatusBadGateway, ErrTypeServiceUnavailable, settle.Message(err)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrTypeTimeout, "Operation timed out"
	}
	return http.StatusInternalServerError, ErrTypeInternal, err.Error()
}

// HandleError classifies err and writes the matching response.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType, message := classify(err)
	engineErr := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method)
	if status >= http.StatusInternalServerError {
		engineErr.WithCause(err)
	}
	built := engineErr.Build()
	eh.logError(r, built, status)
	eh.writeErrorResponse(w, status, built)
}

// HandleValidationError handles a malformed request body or parameter.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	engineErr := NewError(ErrTypeInvalidParams, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		Build()
	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// HandleNotFound reports a game or session that does not exist.
func (eh *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request, errType, game string) {
	message := fmt.Sprintf("Unknown game %q", game)
	if errType == ErrTypeSessionNotFound {
		message = fmt.Sprintf("No open session for %s", game)
	}
	engineErr := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("game", game).
		Build()
	eh.logError(r, engineErr, http.StatusNotFound)
	eh.writeErrorResponse(w, http.StatusNotFound, engineErr)
}

// logError logs the error with a level chosen by its category
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)
	fields := []zap.Field{
		zap.String("type", engineErr.Type),
		zap.String("category", string(category)),
		zap.Int("status", status),
		zap.String("request_id", engineErr.RequestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("message", engineErr.Message),
	}
	if cause, ok := engineErr.Context["cause"]; ok {
		fields = append(fields, zap.Any("cause", cause))
	}
	if status >= http.StatusInternalServerError {
		eh.logger.Error("request failed", fields...)
		return
	}
	eh.logger.Info("request rejected", fields...)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Warn("write error response", zap.Error(err))
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Error("panic recovered",
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rvr),
					zap.Stack("stack"),
				)
				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
