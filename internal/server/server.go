// Package server exposes a sync session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/roach88/tablesync/internal/auth"
	"github.com/roach88/tablesync/internal/codec"
	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/session"
)

const (
	// PathSync is the sync endpoint.
	PathSync = "/sync"

	// PathLegacySync is the endpoint older clients post to.
	PathLegacySync = "/min/public/index.php/"

	// PathHealth answers liveness probes.
	PathHealth = "/healthz"

	DefaultMaxBodyBytes    = 1 << 20
	DefaultShutdownTimeout = 10 * time.Second

	allowMethods = "GET, PUT, POST, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Requested-With"
)

// Handler is the session the server delegates to.
type Handler interface {
	Handle(ctx context.Context, creds session.Credentials, req ir.Request) (*ir.Response, error)
}

// Config controls transport behavior.
type Config struct {
	Addr         string
	MaxBodyBytes int64

	// AllowedOrigins restricts which Origin values are echoed back. Empty
	// echoes any origin.
	AllowedOrigins []string

	ShutdownTimeout time.Duration
}

// Server serves sync requests.
type Server struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger
	router  *mux.Router
}

// New creates a Server. A nil logger means slog.Default().
func New(h Handler, cfg Config, logger *slog.Logger) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, handler: h, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.accessLog, s.cors)

	r.Methods(http.MethodPost).Path(PathSync).HandlerFunc(s.handleSync)
	r.Methods(http.MethodPost).Path(PathLegacySync).HandlerFunc(s.handleSync)
	r.Methods(http.MethodPost).Path(strings.TrimSuffix(PathLegacySync, "/")).HandlerFunc(s.handleSync)
	r.Methods(http.MethodGet).Path(PathHealth).HandlerFunc(s.handleHealth)
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled",
			"method", r.Method,
			"url", r.URL.String(),
			"duration", m.Duration,
			"status", m.Code,
			"bytes", m.Written,
		)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Add("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	c, ok := codec.ForContentType(r.Header.Get("Content-Type"))
	if !ok {
		http.Error(w, "unsupported content type", http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeFailure(w, c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeFailure(w, c, http.StatusBadRequest, "unreadable request body")
		return
	}

	req, err := c.DecodeRequest(body)
	if err != nil {
		s.logger.Debug("rejecting malformed request", "error", err)
		s.writeFailure(w, c, http.StatusBadRequest, "malformed request")
		return
	}

	var creds session.Credentials
	if scheme, token, ok := auth.ParseAuthorization(r.Header.Get("Authorization")); ok {
		creds = session.Credentials{Scheme: scheme, Token: token}
	}

	resp, err := s.handler.Handle(r.Context(), creds, req)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Basic realm="tablesync"`)
		}
		if status == http.StatusInternalServerError {
			s.logger.Error("sync failed", "error", err)
		}
		s.writeFailure(w, c, status, msg)
		return
	}

	s.write(w, c, http.StatusOK, resp)
}

// statusFor maps a session error to an HTTP status and the message shown
// to the client. Internal details are never exposed.
func statusFor(err error) (int, string) {
	var se *session.Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError, "internal error"
	}
	switch se.Kind {
	case session.KindVersionMismatch:
		return http.StatusBadRequest, se.Message
	case session.KindBadRequest:
		return http.StatusBadRequest, "malformed request"
	case session.KindUnauthorized:
		return http.StatusUnauthorized, "authentication failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, c codec.Codec, status int, msg string) {
	s.write(w, c, status, &ir.Response{
		Version: ir.ProtocolVersion,
		EOF:     true,
		Message: &msg,
	})
}

func (s *Server) write(w http.ResponseWriter, c codec.Codec, status int, resp *ir.Response) {
	data, err := c.EncodeResponse(resp)
	if err != nil {
		s.logger.Error("encode response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

// ListenAndServe listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("serving", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.logger.Info("stopped")
	return nil
}
