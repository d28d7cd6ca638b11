package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// BodySizeLimit caps request bodies at maxBytes. A declared Content-Length
// over the cap is answered 413 before the handler runs; undeclared bodies
// fail with *http.MaxBytesError once the handler reads past the cap.
func BodySizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				tooLarge(w, r, maxBytes)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// tooLarge writes the same error body shape as the API handlers.
func tooLarge(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusRequestEntityTooLarge)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":      http.StatusText(http.StatusRequestEntityTooLarge),
		"message":    fmt.Sprintf("request body exceeds %d bytes", maxBytes),
		"code":       http.StatusRequestEntityTooLarge,
		"request_id": GetRequestID(r),
	})
}
