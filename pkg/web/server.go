// Package web is the development server: it serves the built console,
// proxies the backend route and pushes live-reload events to open pages.
package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"github.com/ritzau/console-assembly/pkg/config"
	"github.com/ritzau/console-assembly/pkg/logging"
	"github.com/ritzau/console-assembly/pkg/pubsub"
)

//go:embed livereload.js
var liveReloadScript []byte

// Server represents the dev server
type Server struct {
	cfg       config.Config
	fs        afero.Fs
	router    *mux.Router
	publisher pubsub.Publisher
	log       *slog.Logger
}

// NewServer creates a dev server for cfg. Files are served from fsys.
func NewServer(cfg config.Config, fsys afero.Fs, publisher pubsub.Publisher) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		fs:        fsys,
		router:    mux.NewRouter(),
		publisher: publisher,
		log:       logging.New("web"),
	}
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Routes returns the proxy route table built from cfg.
func Routes(cfg config.Config) []ProxyRoute {
	return []ProxyRoute{{
		Proto:      cfg.Proxy.Proto,
		Port:       cfg.ProxyPort,
		Hostname:   cfg.Proxy.Hostname,
		Path:       cfg.Proxy.Route,
		TargetPath: cfg.TargetPath,
	}}
}

func (s *Server) setupRoutes() error {
	prefix := s.cfg.Server.Prefix

	// Live-reload endpoints
	s.router.HandleFunc(prefix+"livereload", s.streamTopic(pubsub.TopicReload)).Methods(http.MethodGet)
	s.router.HandleFunc(prefix+"build-status", s.streamTopic(pubsub.TopicBuildStatus)).Methods(http.MethodGet)
	s.router.HandleFunc(prefix+"livereload.js", s.handleLiveReloadScript).Methods(http.MethodGet)

	// Proxied backend routes - more specific than the static prefix, so they come first
	for _, route := range Routes(s.cfg) {
		proxy, err := NewProxy(route)
		if err != nil {
			return err
		}
		s.router.MatcherFunc(route.Matches).Handler(proxy)
		s.log.Info("proxying", "path", route.Path, "target", route.Target())
	}

	// Serve the built console
	s.router.PathPrefix(prefix).Handler(NewStatic(s.fs, s.cfg.DistDir(), prefix))
	return nil
}

// Handler returns the complete handler chain: request IDs and access logs,
// then the redirect rule, then the router.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(RedirectOutsidePrefix(s.cfg.Server.Prefix, s.router))
}

// Serve accepts connections on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	// Requests inherit ctx so open live-reload streams end on shutdown
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.ListenAddr(), err)
	}
	s.log.Info("started dev server", "url", fmt.Sprintf("http://%s%s", l.Addr(), s.cfg.Server.Prefix))
	return s.Serve(ctx, l)
}
