package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/api/middleware"
)

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details
type ErrorDetail struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	RequestID string       `json:"request_id"`
	Timestamp time.Time    `json:"timestamp"`
	Fields    []FieldError `json:"fields,omitempty"`
}

// FieldError represents a field-level validation error
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInternalServer        = "INTERNAL_SERVER_ERROR"
	ErrCodeInvalidParameter      = "INVALID_PARAMETER"
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeConflict              = "CONFLICT"
	ErrCodeExternalAPIError      = "EXTERNAL_API_ERROR"
	ErrCodeBusinessRuleViolation = "BUSINESS_RULE_VIOLATION"
	ErrCodeUnavailable           = "SERVICE_UNAVAILABLE"
)

// Error sends an error response
func Error(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	ErrorWithDetails(w, r, statusCode, code, message, "")
}

// ErrorWithDetails sends an error response with additional details
func ErrorWithDetails(w http.ResponseWriter, r *http.Request, statusCode int, code, message, details string) {
	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetRequestID(r.Context()),
			Timestamp: time.Now(),
		},
	}

	event := log.Warn()
	if statusCode >= 500 {
		event = log.Error()
	}
	event.
		Str("request_id", resp.Error.RequestID).
		Str("error_code", code).
		Str("message", message).
		Str("details", details).
		Int("status", statusCode).
		Msg("API error response")

	JSON(w, statusCode, resp)
}

// ValidationError sends a validation error response with field errors
func ValidationError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{
		Error: ErrorDetail{
			Code:      ErrCodeValidation,
			Message:   "Request validation failed",
			RequestID: middleware.GetRequestID(r.Context()),
			Timestamp: time.Now(),
			Fields:    fieldErrors(err),
		},
	}

	log.Warn().
		Str("request_id", resp.Error.RequestID).
		Str("error_code", ErrCodeValidation).
		Int("field_count", len(resp.Error.Fields)).
		Msg("Validation error")

	JSON(w, http.StatusBadRequest, resp)
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

// BadRequest sends a 400 Bad Request error
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, ErrCodeInvalidParameter, message)
}

// NotFound sends a 404 Not Found error
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict sends a 409 Conflict error
func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusConflict, ErrCodeConflict, message)
}

// BusinessRuleViolation sends a 422 error
func BusinessRuleViolation(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusUnprocessableEntity, ErrCodeBusinessRuleViolation, message)
}

// InternalError sends a 500 Internal Server Error
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	ErrorWithDetails(w, r, http.StatusInternalServerError, ErrCodeInternalServer, "An unexpected error occurred", details)
}

// ExternalAPIError sends an external API error response
func ExternalAPIError(w http.ResponseWriter, r *http.Request, serviceName string, err error) {
	message := "External service error"
	if serviceName != "" {
		message = serviceName + " service error"
	}
	details := ""
	if err != nil {
		details = err.Error()
	}
	ErrorWithDetails(w, r, http.StatusBadGateway, ErrCodeExternalAPIError, message, details)
}

// Unavailable sends a 503 Service Unavailable error
func Unavailable(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}
