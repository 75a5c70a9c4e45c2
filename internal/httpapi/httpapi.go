// Package httpapi holds the JSON and middleware plumbing shared by the
// order, payment and table handlers.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-orders/internal/apperror"
	"restaurant-orders/internal/logger"
)

// RequestID returns the id assigned by the Logging middleware, or a fresh one
func RequestID(ctx context.Context) string {
	if id := logger.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return logger.GenerateRequestID()
}

// WriteJSON encodes v with the given status code
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, statusCode int, message, requestID string) {
	WriteJSON(w, statusCode, map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}

// StatusFor maps a classified error onto an HTTP status code
func StatusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindInvalidOperation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err to the client. Unclassified errors are logged and hidden
// behind a generic message.
func Fail(w http.ResponseWriter, log *logger.Logger, action, requestID string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(action, "Request failed", requestID, err, nil)
		WriteError(w, status, "Internal server error", requestID)
		return
	}

	log.Debug(action, apperror.Message(err), requestID, map[string]interface{}{
		"status_code": status,
		"kind":        string(apperror.KindOf(err)),
	})
	WriteError(w, status, apperror.Message(err), requestID)
}

// DecodeJSON strictly decodes the request body into v
func DecodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperror.Validation("decode", fmt.Errorf("invalid JSON body: %w", err))
	}
	return nil
}

// PathInt64 parses a numeric chi URL parameter
func PathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.Validation("path", fmt.Errorf("%s must be a positive integer, got %q", name, raw))
	}
	return id, nil
}

// Logging assigns a request id and logs the start and end of every request
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logger.GenerateRequestID()
			}
			w.Header().Set("X-Request-ID", requestID)
			r = r.WithContext(logger.ContextWithRequestID(r.Context(), requestID))

			log.Debug("request_started", fmt.Sprintf("%s %s", r.Method, r.URL.Path), requestID, map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			log.Debug("request_completed", fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode), requestID, map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
