// Package handler implements the HTTP handlers of the challenge API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"geo-challenge/internal/service"
)

// Error codes returned in the "error" field of failed responses.
const (
	CodeInvalidBoundary    = "InvalidBoundary"
	CodeInvalidPhoto       = "InvalidPhoto"
	CodeInvalidRequest     = "InvalidRequest"
	CodeEmptyGuess         = "EmptyGuess"
	CodeNotFound           = "NotFound"
	CodeAlreadySolved      = "AlreadySolved"
	CodeRateLimited        = "RateLimited"
	CodeScoringUnavailable = "ScoringUnavailable"
	CodeStorageFailure     = "StorageFailure"
)

// scoringRetryAfter is the Retry-After hint, in seconds, for scorer outages.
const scoringRetryAfter = "5"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type contextKey string

const userIDKey contextKey = "userID"

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// WriteError writes an error body with the given status and code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps a service error onto a status and code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, CodeStorageFailure
	switch {
	case errors.Is(err, service.ErrInvalidBoundary):
		status, code = http.StatusBadRequest, CodeInvalidBoundary
	case errors.Is(err, service.ErrInvalidPhoto):
		status, code = http.StatusBadRequest, CodeInvalidPhoto
	case errors.Is(err, service.ErrEmptyGuess):
		status, code = http.StatusBadRequest, CodeEmptyGuess
	case errors.Is(err, service.ErrInvalidRequest):
		status, code = http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, service.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, service.ErrAlreadySolved):
		status, code = http.StatusConflict, CodeAlreadySolved
	case errors.Is(err, service.ErrScoringUnavailable):
		status, code = http.StatusServiceUnavailable, CodeScoringUnavailable
		w.Header().Set("Retry-After", scoringRetryAfter)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		msg = "the request could not be stored, try again later"
	}
	WriteError(w, status, code, msg)
}
