package middleware

import (
	"net/http"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
)

// Logging creates middleware that logs each request with its status and
// latency. Server errors log at warn level.
func Logging(logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)

			fields := []logging.Field{
				logging.String("method", r.Method),
				logging.Path(r.URL.Path),
				logging.Int("status", sw.statusCode),
				logging.Latency(time.Since(start)),
			}
			if id := GetRequestID(r); id != "" {
				fields = append(fields, logging.String("request_id", id))
			}
			if sw.statusCode >= http.StatusInternalServerError {
				logger.Warn("http request", fields...)
			} else {
				logger.Debug("http request", fields...)
			}
		})
	}
}
