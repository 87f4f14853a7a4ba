package metrics

import (
	"net/http"
	"strconv"
)

// statusInterceptor wraps http.ResponseWriter to capture the status code.
type statusInterceptor struct {
	http.ResponseWriter
	status int
}

func (si *statusInterceptor) WriteHeader(code int) {
	si.status = code
	si.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler to record endpoint responses.
func Middleware(next http.Handler, endpoint string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Default to 200 OK if WriteHeader is never called.
		interceptor := &statusInterceptor{w, http.StatusOK}
		next.ServeHTTP(interceptor, r)
		EndpointResponses.WithLabelValues(endpoint, strconv.Itoa(interceptor.status)).Inc()
	})
}

// RecordCall accounts one bridge operation outcome; failed calls are also
// counted by failure kind.
func RecordCall(op string, err error, kind string) {
	if err == nil {
		BridgeCalls.WithLabelValues(op, "ok").Inc()
		return
	}
	BridgeCalls.WithLabelValues(op, "error").Inc()
	BridgeFailures.WithLabelValues(op, kind).Inc()
}
