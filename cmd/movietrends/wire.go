//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"movietrends/internal/biz"
	"movietrends/internal/conf"
	"movietrends/internal/data"
	"movietrends/internal/metrics"
	"movietrends/internal/server"
	"movietrends/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init movietrends application.
func wireApp(*conf.Bootstrap, *service.RunInfo, log.Logger) (*app, func(), error) {
	panic(wire.Build(
		wire.FieldsOf(new(*conf.Bootstrap), "Input", "Ranking", "Output", "Data", "Metrics", "Tracing"),
		server.ProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		metrics.ProviderSet,
		wire.Bind(new(biz.RunMetrics), new(*metrics.Metrics)),
		newRankingOptions,
		newTrendOptions,
		newTracingProvider,
		newTracer,
		newApp,
	))
}
