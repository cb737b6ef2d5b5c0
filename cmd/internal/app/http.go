package app

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tasktrack/cmd/internal/httpio"
)

const (
	msgNotFound         = "Not found"
	msgMethodNotAllowed = "Method not allowed"
)

func (a *App) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(
		WithRequestID,
		func(next http.Handler) http.Handler { return WithRequestLogging(next, a.log, a.metrics) },
		WithSecurityHeaders,
		func(next http.Handler) http.Handler { return WithCORS(next, a.cfg, a.log) },
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpio.WriteMessage(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpio.WriteMessage(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", a.handleReady)

	if a.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	}

	r.Handle("/ws", a.ws)

	mountAPI := func(r chi.Router) {
		a.auth.Routes(r, a.gate.Require)
		a.tasks.Routes(r, a.gate.Require)
	}
	if a.cfg.APIPrefix == "" {
		mountAPI(r)
	} else {
		r.Route(a.cfg.APIPrefix, mountAPI)
	}

	return r
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && a.store.kind == StoreMemory {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}
	if err := a.store.Ping(r.Context()); err != nil {
		a.log.Info("readyz.store.not_ready", "store", a.store.kind, "err", err)
		http.Error(w, "store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

// runtimeBaseURL turns a listen address into a URL a local client can reach.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
