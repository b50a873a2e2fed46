package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"masader/internal/api"
	"masader/internal/config"
	"masader/internal/engine"
	"masader/internal/errors"
	"masader/internal/logger"
	"masader/internal/refresh"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(cfg *config.Config, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API.",
		Long: `serve starts the HTTP API.

The API is live immediately and answers 503 until the first
snapshot has been loaded from the cache store. Unless
--refresh.on-start=false, a refresh is triggered at startup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, stderr)
		},
	}
}

// Server wires the snapshot store, the refresh coordinator and the HTTP
// surface together.
type Server struct {
	cfg    *config.Config
	logger logger.Logger
	loader *engine.Loader
	store  *engine.Store
	coord  *engine.Coordinator
	echo   *echo.Echo

	// Done receives the listener error if the HTTP server stops on its own.
	Done chan error
}

func NewServer(cfg *config.Config, l logger.Logger) (*Server, error) {
	loader, err := newLoader(cfg, l.WithPrefix("loader: "))
	if err != nil {
		return nil, errors.Wrap(err, "opening cache store")
	}

	store := engine.NewStore()
	coord := engine.NewCoordinator(store, loader, newJob(cfg, loader, l.WithPrefix("refresh: ")), l)
	coord.ReloadOnComplete = cfg.Refresh.ReloadOnComplete

	h := api.NewHandler(store, coord, Version)
	e := api.NewServer(h, api.Options{
		Origins:   cfg.CORS.Origins,
		Logger:    l,
		AccessLog: true,
	})
	return &Server{
		cfg:    cfg,
		logger: l,
		loader: loader,
		store:  store,
		coord:  coord,
		echo:   e,
		Done:   make(chan error, 1),
	}, nil
}

// newJob returns the refresh job selected by the configuration, or nil when
// none is configured and /refresh only reloads the cache.
func newJob(cfg *config.Config, loader *engine.Loader, l logger.Logger) engine.Job {
	switch {
	case cfg.Refresh.Command != "":
		return refresh.NewCommandJob(cfg.Refresh.Command, l)
	case cfg.Refresh.MasaderURL != "":
		job := refresh.NewSourceJob(loader.Cache, cfg.Refresh.MasaderURL, cfg.Refresh.TagsURL, l)
		job.MasaderKey = loader.MasaderKey
		job.TagsKey = loader.TagsKey
		return job
	}
	return nil
}

// Open starts serving on the configured address and triggers the startup
// refresh in the background.
func (s *Server) Open() error {
	if err := s.loader.Cache.Ping(context.Background()); err != nil {
		// The store may come up later; /refresh retries the load.
		s.logger.Warnf("cache store unreachable: %v", err)
	}

	if s.cfg.Refresh.OnStart {
		go func() {
			t0 := time.Now()
			snap, err := s.coord.Refresh(context.Background(), false)
			if err != nil {
				s.logger.Errorf("startup refresh failed: %v", err)
				return
			}
			s.logger.Infof("startup refresh loaded %d datasets in %v", snap.Len(), time.Since(t0))
		}()
	}

	go func() {
		if err := s.echo.Start(s.cfg.Bind); err != nil && err != http.ErrServerClosed {
			s.Done <- err
		}
	}()
	s.logger.Infof("listening on %s", s.cfg.Bind)
	return nil
}

// Close stops the HTTP server, waits for a running refresh job and closes
// the cache store.
func (s *Server) Close(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	if werr := s.coord.Wait(ctx); werr != nil {
		s.logger.Warnf("refresh job: %v", werr)
	}
	if cerr := s.loader.Cache.Close(); err == nil {
		err = cerr
	}
	return err
}

func runServe(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	l := newLogger(cfg, stderr)
	l.Infof("masader %s", Version)

	s, err := NewServer(cfg, l)
	if err != nil {
		return err
	}
	if err := s.Open(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
		l.Infof("shutting down")
	case err := <-s.Done:
		l.Errorf("http server: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Close(sctx)
}
