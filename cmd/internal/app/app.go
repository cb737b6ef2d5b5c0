// Package app wires the tasktrack server runtime: config, logging, storage, HTTP routes and the task feed.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"tasktrack/cmd/identity"
	authapi "tasktrack/cmd/internal/auth/api"
	"tasktrack/cmd/internal/auth/gate"
	"tasktrack/cmd/internal/auth/session"
	"tasktrack/cmd/internal/realtime"
	"tasktrack/cmd/internal/tasks"
	taskapi "tasktrack/cmd/internal/tasks/api"
	"tasktrack/cmd/security/password"
)

// App owns the server wiring and every long-lived dependency.
type App struct {
	cfg Config
	log Logger

	store *backend

	registry *prometheus.Registry
	metrics  *httpMetrics

	gate  *gate.Gate
	auth  *authapi.Handler
	tasks *taskapi.Handler
	hub   *realtime.Hub
	ws    *realtime.WSGateway

	handler http.Handler
}

// New constructs a fully wired App. Close releases the store.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	}

	tokens, pwCfg, err := loadSecurity(log)
	if err != nil {
		return nil, err
	}
	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	wsCfg, err := realtime.LoadGatewayConfigFromEnv()
	if err != nil {
		return nil, err
	}

	st, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := build(cfg, log, st, tokens, pwCfg, authCfg, wsCfg)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func build(
	cfg Config,
	log Logger,
	st *backend,
	tokens session.TokenManager,
	pwCfg password.Config,
	authCfg authapi.Config,
	wsCfg realtime.GatewayConfig,
) (*App, error) {
	a := &App{cfg: cfg, log: log, store: st, registry: newRegistry()}

	var err error
	if a.metrics, err = newHTTPMetrics(a.registry); err != nil {
		return nil, err
	}
	authMetrics, err := authapi.NewMetrics(a.registry)
	if err != nil {
		return nil, err
	}

	users, err := identity.NewService(st.users, identity.WithHasher(pwCfg), identity.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if a.gate, err = gate.New(tokens, users, gate.WithLogger(log)); err != nil {
		return nil, err
	}
	if a.auth, err = authapi.NewHandler(log, users, tokens, authCfg, authapi.WithMetrics(authMetrics)); err != nil {
		return nil, err
	}

	a.hub = realtime.NewHub(log)
	if err := a.registry.Register(newFeedSessionsGauge(a.hub.Sessions)); err != nil {
		return nil, err
	}
	if a.ws, err = realtime.NewWSGateway(log, a.hub, a.gate, wsCfg); err != nil {
		return nil, err
	}

	taskSvc, err := tasks.NewService(st.tasks, tasks.WithPublisher(a.hub), tasks.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if a.tasks, err = taskapi.NewHandler(log, taskSvc, authCfg.MaxBodyBytes); err != nil {
		return nil, err
	}

	a.handler = a.routes()
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases the store connection.
func (a *App) Close(ctx context.Context) error {
	if err := a.store.Close(ctx); err != nil {
		a.log.Error("store.close.fail", "err", err)
		return err
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := a.cfg.PublicBaseURL
	if base == "" {
		base = runtimeBaseURL(a.cfg.HTTPAddr)
	}
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", base+a.cfg.APIPrefix,
		"ws_url", wsBaseURL(base)+"/ws",
		"store", a.store.kind,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.log.Error("server.fail", "err", err)
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
