package commands

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/datavis-fr/geobatch/core"
)

const shutdownTimeout = 5 * time.Second

// newMetricsRouter serves /metrics from reg and a /healthz probe.
func newMetricsRouter(reg *prom.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	return r
}

// serveWhile runs fn. When a metrics address is configured the metrics server
// and snapshot poller run alongside fn and are stopped once fn returns.
func serveWhile(ctx context.Context, a *app, fn func(ctx context.Context) error) error {
	addr := a.cfg.Metrics.Addr
	if addr == "" {
		return fn(ctx)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           newMetricsRouter(a.registry),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.slogger.Handler(), slog.LevelWarn),
	}
	a.logger.Info("metrics server listening", core.F("addr", ln.Addr().String()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		a.poller.Start(gctx)
		defer func() {
			a.poller.Stop()
			a.poller.CollectOnce()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("metrics server shutdown failed", core.F("error", err.Error()))
			}
		}()
		return fn(gctx)
	})
	return g.Wait()
}
