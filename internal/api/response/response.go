package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/api/middleware"
)

// SuccessResponse represents a successful API response
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// Meta represents metadata in response
type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Count     int       `json:"count,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func meta(r *http.Request) Meta {
	return Meta{
		RequestID: middleware.GetRequestID(r.Context()),
		Timestamp: time.Now(),
	}
}

// Success sends a successful response with data
func Success(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: meta(r)})
}

// SuccessWithMessage sends a successful response with data and message
func SuccessWithMessage(w http.ResponseWriter, r *http.Request, data any, message string) {
	m := meta(r)
	m.Message = message
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: m})
}

// SuccessList sends a successful response with list data and count
func SuccessList(w http.ResponseWriter, r *http.Request, data any, count int) {
	m := meta(r)
	m.Count = count
	JSON(w, http.StatusOK, SuccessResponse{Data: data, Meta: m})
}

// Created sends a 201 Created response
func Created(w http.ResponseWriter, r *http.Request, data any, message string) {
	m := meta(r)
	m.Message = message
	JSON(w, http.StatusCreated, SuccessResponse{Data: data, Meta: m})
}
