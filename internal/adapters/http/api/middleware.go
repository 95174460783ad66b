package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/kudos/pkg/metrics"
)

// instrument records the count and latency of every request to one route,
// and counts 4xx and 5xx answers by class.
func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)

		code := strconv.Itoa(rec.status)
		ms := float64(time.Since(start).Microseconds()) / 1000
		metrics.RecordHTTPRequest(endpoint, r.Method, code)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, code, ms)
		if class := errorClass(rec.status); class != "" {
			metrics.RecordErrorByComponent("http", class)
		}
	}
}

// errorClass buckets an error status for the error counter. It is empty for
// successful answers.
func errorClass(status int) string {
	switch {
	case status < http.StatusBadRequest:
		return ""
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusTooManyRequests:
		return "backpressure"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "conflict"
	default:
		return "client_error"
	}
}

// statusRecorder remembers the status a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
