// Package httpapi serves the detector over HTTP.
//
// Routes:
//
//	POST /detect-sheet  multipart field "image"  -> {"a4_detected": bool, "foot_on_a4": bool}
//	POST /crop-image    multipart field "image" plus crop form fields -> base64 PNG
//	GET  /ping          -> {"status": "ok"}
//
// Every route sends permissive CORS headers and an X-Request-ID. Errors are
// returned as {"error": "..."}.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/semaphore"

	"github.com/ironsheep/sheet-detect/internal/config"
	"github.com/ironsheep/sheet-detect/internal/detection"
	"github.com/ironsheep/sheet-detect/internal/logging"
)

// Server is the HTTP front end of a Detector.
type Server struct {
	cfg    config.ServerConfig
	mux    *http.ServeMux
	sem    *semaphore.Weighted
	detect func(image.Image) (detection.Result, error)
}

// New creates a Server running detections with d under the limits in cfg.
func New(d *detection.Detector, cfg config.ServerConfig) *Server {
	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		sem:    semaphore.NewWeighted(int64(max(cfg.MaxConcurrent, 1))),
		detect: d.Detect,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/detect-sheet", s.withRequestID(s.enableCORS(s.handleDetectSheet)))
	s.mux.HandleFunc("/crop-image", s.withRequestID(s.enableCORS(s.handleCropImage)))
	s.mux.HandleFunc("/ping", s.withRequestID(s.enableCORS(s.handlePing)))
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe listens on cfg.Addr and serves until ctx is canceled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled. At most
// cfg.MaxConnections connections are open at once (0 means no limit).
// In-flight requests get cfg.ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	logging.Infof("HTTP server listening on %s", ln.Addr())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logging.Infof("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
