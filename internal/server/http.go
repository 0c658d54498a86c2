package server

import (
	"context"
	"net/http"

	"movietrends/internal/conf"
	"movietrends/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server exposing /metrics and /healthz while a
// run is in progress.
func NewHTTPServer(c *conf.Metrics, reg *prometheus.Registry, info *service.RunInfo, logger log.Logger) *khttp.Server {
	var opts = []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
		),
		khttp.Filter(RunIDFilter(info.ID)),
	}
	if c.Addr != "" {
		opts = append(opts, khttp.Address(c.Addr))
	}
	srv := khttp.NewServer(opts...)
	srv.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:      reg,
		ErrorLog:      &promLogger{log.NewHelper(logger)},
		ErrorHandling: promhttp.ContinueOnError,
	}))
	srv.Route("/").GET("/healthz", healthz(info))
	return srv
}

func healthz(info *service.RunInfo) khttp.HandlerFunc {
	return func(ctx khttp.Context) error {
		h := ctx.Middleware(func(context.Context, any) (any, error) {
			return map[string]string{
				"status":  "running",
				"run_id":  info.ID,
				"version": info.Version,
			}, nil
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	}
}

// promLogger adapts a kratos helper to promhttp.Logger.
type promLogger struct {
	log *log.Helper
}

func (l *promLogger) Println(v ...any) {
	l.log.Error(v...)
}
