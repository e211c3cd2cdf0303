package handler

// RESPONSE HELPERS:
// Every endpoint answers through writeJSON, and every failure through
// writeError, so clients always see the same error shape:
//
//	{"error": "not_found", "message": "user not found with id g-1"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/geopoint/internal/apperror"
)

// maxBodyBytes caps JSON request bodies. Identity tokens are a few KB.
const maxBodyBytes = 64 << 10

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error kind (e.g. "not_found")
	Message string `json:"message"` // Human-readable description
}

// SuccessResponse acknowledges a write that has nothing else to return.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// writeJSON sends data as JSON with the given status code. Headers must be
// set before WriteHeader; anything set afterwards is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
// Any decoding problem is an InvalidRequest.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.InvalidRequest("body", "request body is required")
		case errors.As(err, &maxErr):
			return apperror.InvalidRequest("body", fmt.Sprintf("request body must be %d bytes or less", maxErr.Limit))
		default:
			return apperror.InvalidRequest("body", "request body must be valid JSON")
		}
	}
	if dec.More() {
		return apperror.InvalidRequest("body", "request body must contain a single JSON object")
	}
	return nil
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrInvalidRequest → 400 invalid_request
//	ErrInvalidToken   → 401 invalid_token
//	ErrNotFound       → 404 not_found
//	ErrUnavailable    → 503 unavailable
//	anything else     → 500 internal_error (Conflict included: it should
//	                    have been absorbed before reaching HTTP)
//
// 401s and 5xx are logged with their cause. The client only ever sees the
// AppError message; raw errors may carry SQL or provider details.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, kind := classify(err)

	message := "an internal error occurred"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		message = appErr.Message
	}

	if status == http.StatusUnauthorized || status >= http.StatusInternalServerError {
		attrs := []any{
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
			slog.String("requestID", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		}
		if appErr != nil && appErr.Cause != nil {
			attrs = append(attrs, slog.String("cause", appErr.Cause.Error()))
		}
		level := slog.LevelError
		if status == http.StatusUnauthorized {
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "request failed", attrs...)
	}

	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, apperror.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
