package data

import (
	"os"

	"movietrends/internal/biz"
	"movietrends/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// NewResultSinks returns the sinks enabled by the output configuration. The
// CSV directory sink is always present.
func NewResultSinks(out *conf.Output, c *conf.Data, data *Data, logger log.Logger) []biz.ResultSink {
	sinks := []biz.ResultSink{NewCSVSink(out.PartFile, logger)}
	if out.Console {
		sinks = append(sinks, NewConsoleSink(os.Stdout))
	}
	if out.Redis {
		if data.rdb == nil {
			log.NewHelper(logger).Warn("redis output enabled but redis is unavailable, leaderboards will not be published")
		} else {
			sinks = append(sinks, NewRedisSink(data, c.Redis.KeyPrefix, c.Redis.TTL, logger))
		}
	}
	return sinks
}
