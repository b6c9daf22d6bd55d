package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"nextcube/internal/accesslog"
	"nextcube/internal/storage"
)

// Deps are the collaborators shared by every request. Static, Upload,
// AccessLog and Stdout are required.
type Deps struct {
	Static    storage.Store
	Upload    storage.Store
	AccessLog accesslog.Logger
	// Stdout is the shared sink the access log also writes to.
	Stdout *accesslog.Sink
	// Ledger is optional.
	Ledger  UploadRecorder
	Metrics *Metrics
	Log     zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	cfg     Config
	static  storage.Store
	upload  storage.Store
	access  accesslog.Logger
	stdout  *accesslog.Sink
	ledger  UploadRecorder
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time

	handler       http.Handler
	httpServer    *http.Server
	metricsServer *http.Server
}

func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		static:  deps.Static,
		upload:  deps.Upload,
		access:  deps.AccessLog,
		stdout:  deps.Stdout,
		ledger:  deps.Ledger,
		metrics: deps.Metrics,
		log:     deps.Log,
		now:     deps.Now,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.now == nil {
		s.now = time.Now
	}

	rt := newRouter(http.HandlerFunc(handleNotFound))
	rt.handle(http.MethodGet, "/ping", http.HandlerFunc(handlePing))
	rt.handle(http.MethodGet, "/robots.txt", http.HandlerFunc(handleRobots))
	rt.handle(http.MethodGet, "/static/{path...}", s.staticHandler())
	rt.handle(http.MethodPost, "/upload/{path...}", s.uploadHandler())
	rt.handle(http.MethodPost, "/dump", s.dumpHandler())
	rt.handle(http.MethodPost, "/", s.dumpHandler())

	// Wrap middleware: requestID -> metrics -> access log -> headers -> router
	var handler http.Handler = rt
	handler = s.responseHeaderMiddleware(handler)
	handler = s.accessLogMiddleware(handler)
	handler = s.metricsMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if cfg.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// net/http's own diagnostics stay quiet; the access log is the only
		// per-request output.
		ErrorLog: log.New(io.Discard, "", 0),
	}
	if addr := cfg.MetricsAddr(); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          log.New(io.Discard, "", 0),
		}
	}
	return s
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Metrics returns the collectors the server records into.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Start binds the listeners and serves until Shutdown. TLS material is
// loaded before binding so a bad pair never opens a port.
func (s *Server) Start() error {
	if s.cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load tls key pair: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	if s.metricsServer != nil {
		mln, err := net.Listen("tcp", s.metricsServer.Addr)
		if err != nil {
			_ = ln.Close()
			return err
		}
		go func() { errCh <- s.metricsServer.Serve(mln) }()
	}
	go func() {
		if s.cfg.TLSEnabled() {
			errCh <- s.httpServer.ServeTLS(ln, "", "")
			return
		}
		errCh <- s.httpServer.Serve(ln)
	}()

	err = <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	var metricsErr error
	if s.metricsServer != nil {
		metricsErr = s.metricsServer.Shutdown(ctx)
	}
	return errors.Join(s.httpServer.Shutdown(ctx), metricsErr)
}
