// Package ui serves the storefront over HTTP.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/notifier"
	"github.com/tienda-labs/tienda/internal/ui/router"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// Server is the storefront HTTP server.
type Server struct {
	addr            string
	deps            *common.Deps
	routes          router.Options
	watch           bool
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Config holds configuration for the server.
type Config struct {
	Addr   string
	Deps   *common.Deps
	Routes router.Options
	// Watch reloads templates from disk when they change and tells open
	// pages to refresh. It needs a renderer built from a directory.
	Watch           bool
	ShutdownTimeout time.Duration
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &Server{
		addr:            cfg.Addr,
		deps:            cfg.Deps,
		routes:          cfg.Routes,
		watch:           cfg.Watch,
		shutdownTimeout: timeout,
		logger:          cfg.Deps.Log(),
	}
}

// Handler builds the full middleware stack and routes.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelInfo),
			NoColor: true,
		}),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, s.deps, s.routes); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.logger.Info("starting storefront", "addr", "http://"+ln.Addr().String(), "dev", s.deps.IsDev)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchTemplates(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down storefront...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchTemplates re-parses the templates after edits and asks open pages to
// reload.
func (s *Server) watchTemplates(ctx context.Context) error {
	dir := s.deps.Views.Dir()
	if dir == "" {
		s.logger.Warn("template watching needs a templates directory; not watching")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, dir); err != nil {
		// Keep serving without live reload.
		s.logger.Error("failed to watch templates directory", "dir", dir, "error", err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".html" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("template changed, reloading", "file", name)
				if err := s.deps.Views.Reload(); err != nil {
					s.logger.Error("template reload failed", "error", err)
					return
				}
				s.deps.Notifier.Publish(notifier.Reload)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
