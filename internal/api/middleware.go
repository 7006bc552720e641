package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Farras8/cek-pohon-app/internal/logging"
	"github.com/Farras8/cek-pohon-app/internal/metrics"
)

// observe logs every request, records HTTP metrics and recovers panics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		rw.Header().Set("X-Request-ID", reqID)

		log := s.Log.With().Str("request_id", reqID).Str("method", r.Method).Str("path", r.URL.Path).Logger()
		r = r.WithContext(logging.WithLogger(r.Context(), log))

		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Msg("panic recovered")
				if rw.wroteHeader {
					rw.status = http.StatusInternalServerError
				} else {
					writeProblem(rw, http.StatusInternalServerError, "Internal Server Error", "", r.URL.Path)
				}
			}
			dur := time.Since(start)
			status := strconv.Itoa(rw.status)
			metrics.HTTPRequests.WithLabelValues(r.Method, routeLabel(r.URL.Path), status).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, routeLabel(r.URL.Path), status).Observe(dur.Seconds())
			log.Info().Int("status", rw.status).Dur("duration", dur).Msg("http request")
		}()
		next.ServeHTTP(rw, r)
	})
}

// routeLabel bounds metric cardinality to the known routes.
func routeLabel(path string) string {
	switch path {
	case "/v1/trees/upload", "/v1/trees/missing", "/v1/trees/duplicates", "/v1/trees/summary",
		"/v1/trees/export", "/v1/trees/export-duplicates", "/v1/trees/delete-selected", "/v1/trees",
		"/v1/events/ws", "/healthz", "/readyz", "/metrics", "/debug/vars":
		return path
	}
	return "other"
}

func metricsHandler() http.Handler {
	metrics.RegisterDefault()
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	r.wroteHeader = true
	return h.Hijack()
}
