package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"nextcube/internal/accesslog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDFromContext returns the request id if present.
func RequestIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(requestIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// requestIDMiddleware ensures every request has a request id.
// A client-supplied X-Request-Id is kept when it parses as a UUID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid, err := uuid.Parse(r.Header.Get("X-Request-Id"))
		if err != nil {
			rid = uuid.New()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		w.Header().Set("X-Request-Id", rid.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLogMiddleware emits one record per request before the handler
// runs. Only headers are read.
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.access.Log(accesslog.FromRequest(r, s.now())); err != nil {
			s.log.Warn().Err(err).Msg("access_log_write_failed")
		}
		next.ServeHTTP(w, r)
	})
}

// responseHeaders are forced onto every response.
func (s *Server) responseHeaders(h http.Header) {
	h.Set("Server", ServerHeader)
	if s.cfg.AcceptCH {
		h.Set("Accept-CH", AcceptCHValue)
	}
}

// responseHeaderMiddleware applies responseHeaders after the handler has
// set its own headers but before any byte reaches the client.
func (s *Server) responseHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hw := &headerWriter{ResponseWriter: w, apply: s.responseHeaders}
		next.ServeHTTP(hw, r)
		hw.flushHeaders()
	})
}

// metricsMiddleware counts every request by route and status.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, slot := withRouteSlot(r.Context())

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		s.metrics.observe(r.Method, slot.pattern, sw.status, time.Since(start))
	})
}

// headerWriter calls apply exactly once, right before the header is sent.
type headerWriter struct {
	http.ResponseWriter
	apply func(http.Header)
	done  bool
}

func (w *headerWriter) flushHeaders() {
	if !w.done {
		w.done = true
		w.apply(w.ResponseWriter.Header())
	}
}

func (w *headerWriter) WriteHeader(code int) {
	w.flushHeaders()
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.flushHeaders()
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) Flush() {
	w.flushHeaders()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *headerWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
