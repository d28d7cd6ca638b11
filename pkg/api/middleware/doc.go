// Package middleware provides the HTTP middleware of the fleetguard API
// server. Every middleware has the form func(http.Handler) http.Handler and
// Chain composes them outermost first:
//
//	handler := middleware.Chain(mux,
//		middleware.PanicRecovery(logger),
//		middleware.RequestID(),
//		middleware.Logging(logger),
//		middleware.Metrics(registry),
//		middleware.BodySizeLimit(8<<20),
//	)
package middleware

import "net/http"

// Chain wraps h so that the first middleware sees the request first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
