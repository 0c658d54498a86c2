package main

import (
	"context"
	"time"

	"movietrends/internal/biz"
	"movietrends/internal/conf"
	"movietrends/internal/metrics"
	"movietrends/internal/service"
	"movietrends/internal/tracing"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	svc     *service.TrendService
	srv     *khttp.Server
	metrics *metrics.Metrics
	reg     *prometheus.Registry
	conf    *conf.Metrics
	info    *service.RunInfo
	log     *log.Helper
}

func newApp(svc *service.TrendService, srv *khttp.Server, m *metrics.Metrics, reg *prometheus.Registry, c *conf.Metrics, info *service.RunInfo, logger log.Logger) *app {
	return &app{
		svc:     svc,
		srv:     srv,
		metrics: m,
		reg:     reg,
		conf:    c,
		info:    info,
		log:     log.NewHelper(logger),
	}
}

// run serves metrics while the trend run executes and returns the process
// exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if a.conf.Addr != "" {
		go func() {
			if err := a.srv.Start(ctx); err != nil {
				a.log.Warnf("metrics server stopped: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := a.srv.Stop(ctx); err != nil {
				a.log.Warnf("failed to stop metrics server: %v", err)
			}
		}()
	}

	_, err := a.svc.Run(ctx, args)

	host := metrics.SnapshotHost(ctx)
	a.metrics.SetHost(host)
	a.log.Infof("host: cpus=%d cpu=%.1f%% mem_used=%.1f%% rss=%d goroutines=%d",
		host.CPUCores, host.CPUPercent, host.MemoryUsedPercent, host.ProcessRSS, host.Goroutines)

	if a.conf.PushURL != "" {
		pctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if perr := metrics.Push(pctx, a.conf.PushURL, a.conf.Job, a.info.ID, a.reg); perr != nil {
			a.log.Warn(perr)
		}
		cancel()
	}

	if err != nil {
		a.log.Errorf("run failed: %v", err)
	}
	return service.ExitCode(err)
}

func newRankingOptions(c *conf.Ranking) biz.RankingOptions {
	return biz.RankingOptions{
		PopularityFloor: c.PopularityFloor,
		Partitions:      c.Partitions,
	}
}

func newTrendOptions(c *conf.Ranking) biz.TrendOptions {
	return biz.TrendOptions{
		Timeout:     c.Timeout,
		Concurrency: c.Concurrency,
	}
}

func newTracingProvider(c *conf.Tracing, info *service.RunInfo, logger log.Logger) (*tracing.Provider, func(), error) {
	p, err := tracing.NewProvider(c, info.Name, info.Version, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			log.NewHelper(logger).Warn(err)
		}
	}
	return p, cleanup, nil
}

func newTracer(p *tracing.Provider) trace.Tracer {
	return p.Tracer(tracing.TracerName)
}
