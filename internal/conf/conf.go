// Package conf loads the job configuration. Values come from code defaults,
// an optional YAML file and MOVIETRENDS_* environment variables, in that
// order of precedence.
package conf

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/text/encoding/ianaindex"
)

// Input drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Bootstrap is the root of the configuration tree.
type Bootstrap struct {
	Log     *Log     `koanf:"log"`
	Input   *Input   `koanf:"input"`
	Ranking *Ranking `koanf:"ranking"`
	Output  *Output  `koanf:"output"`
	Data    *Data    `koanf:"data"`
	Metrics *Metrics `koanf:"metrics"`
	Tracing *Tracing `koanf:"tracing"`
}

type Log struct {
	Level string `koanf:"level"`
}

type Input struct {
	// Driver selects where the three source tables come from.
	Driver string `koanf:"driver"`
	// Encoding is the IANA charset of the .dat files.
	Encoding string `koanf:"encoding"`
}

type Ranking struct {
	PopularityFloor int           `koanf:"popularity_floor"`
	Partitions      int           `koanf:"partitions"`
	Timeout         time.Duration `koanf:"timeout"`
	Concurrency     int           `koanf:"concurrency"`
	Targets         *Targets      `koanf:"targets"`
}

type Targets struct {
	Age        int    `koanf:"age"`
	Season     string `koanf:"season"`
	Occupation int    `koanf:"occupation"`
}

type Output struct {
	Console  bool   `koanf:"console"`
	Redis    bool   `koanf:"redis"`
	PartFile string `koanf:"part_file"`
}

type Data struct {
	Database *Database `koanf:"database"`
	Mongo    *Mongo    `koanf:"mongo"`
	Redis    *Redis    `koanf:"redis"`
}

type Database struct {
	Source    string `koanf:"source"`
	BatchSize int    `koanf:"batch_size"`
}

type Mongo struct {
	URI      string        `koanf:"uri"`
	Database string        `koanf:"database"`
	Timeout  time.Duration `koanf:"timeout"`
}

type Redis struct {
	Addr         string        `koanf:"addr"`
	KeyPrefix    string        `koanf:"key_prefix"`
	TTL          time.Duration `koanf:"ttl"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type Metrics struct {
	// Addr serves /metrics while the job runs when set.
	Addr string `koanf:"addr"`
	// PushURL is a Prometheus Pushgateway receiving the final metrics when set.
	PushURL string `koanf:"push_url"`
	Job     string `koanf:"job"`
}

type Tracing struct {
	Enabled      bool    `koanf:"enabled"`
	Exporter     string  `koanf:"exporter"`
	Endpoint     string  `koanf:"endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
	Insecure     bool    `koanf:"insecure"`
}

// Configuration validation errors.
var (
	ErrUnknownDriver      = errors.New("input.driver must be one of file, postgres, mongo")
	ErrMissingDatabase    = errors.New("data.database.source is required for the postgres driver")
	ErrMissingMongo       = errors.New("data.mongo.uri and data.mongo.database are required for the mongo driver")
	ErrMissingRedis       = errors.New("data.redis.addr is required when output.redis is enabled")
	ErrInvalidSeason      = errors.New("ranking.targets.season must be Spring, Summer, Autumn or Winter")
	ErrInvalidFloor       = errors.New("ranking.popularity_floor must not be negative")
	ErrInvalidSampling    = errors.New("tracing.sampling_rate must be between 0 and 1")
	ErrInvalidConcurrency = errors.New("ranking.partitions and ranking.concurrency must not be negative")
	ErrInvalidEncoding    = errors.New("input.encoding must be an IANA charset name")
)

// Default values.
const (
	DefaultLogLevel        = "info"
	DefaultEncoding        = "ISO-8859-1"
	DefaultPopularityFloor = 500
	DefaultTimeout         = 5 * time.Minute
	DefaultTargetAge       = 18
	DefaultTargetSeason    = "Spring"
	DefaultTargetJob       = 7
	DefaultPartFile        = "part-00000.csv"
	DefaultBatchSize       = 10000
	DefaultMongoDatabase   = "movielens"
	DefaultMongoTimeout    = 30 * time.Second
	DefaultRedisPrefix     = "rank:movies:"
	DefaultRedisTTL        = 24 * time.Hour
	DefaultMetricsJob      = "movietrends"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Bootstrap {
	return &Bootstrap{
		Log:   &Log{Level: DefaultLogLevel},
		Input: &Input{Driver: DriverFile, Encoding: DefaultEncoding},
		Ranking: &Ranking{
			PopularityFloor: DefaultPopularityFloor,
			Timeout:         DefaultTimeout,
			Targets: &Targets{
				Age:        DefaultTargetAge,
				Season:     DefaultTargetSeason,
				Occupation: DefaultTargetJob,
			},
		},
		Output: &Output{Console: true, PartFile: DefaultPartFile},
		Data: &Data{
			Database: &Database{BatchSize: DefaultBatchSize},
			Mongo:    &Mongo{Database: DefaultMongoDatabase, Timeout: DefaultMongoTimeout},
			Redis: &Redis{
				KeyPrefix:    DefaultRedisPrefix,
				TTL:          DefaultRedisTTL,
				ReadTimeout:  time.Second,
				WriteTimeout: time.Second,
			},
		},
		Metrics: &Metrics{Job: DefaultMetricsJob},
		Tracing: &Tracing{Exporter: "otlp-http", SamplingRate: 1.0},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Bootstrap, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	c := Default()
	if err := k.UnmarshalWithConf("", c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, []error{fmt.Errorf("failed to decode config: %w", err)}
	}
	applyEnv(c)
	c.Input.Driver = strings.ToLower(strings.TrimSpace(c.Input.Driver))

	return c, c.Validate()
}

func applyEnv(c *Bootstrap) {
	setFromEnv(&c.Log.Level, "MOVIETRENDS_LOG_LEVEL")
	setFromEnv(&c.Input.Driver, "MOVIETRENDS_INPUT_DRIVER")
	setFromEnv(&c.Data.Database.Source, "MOVIETRENDS_DATABASE_SOURCE", "DATABASE_URL")
	setFromEnv(&c.Data.Mongo.URI, "MOVIETRENDS_MONGO_URI", "MONGO_URI")
	setFromEnv(&c.Data.Redis.Addr, "MOVIETRENDS_REDIS_ADDR", "REDIS_ADDR")
	setFromEnv(&c.Metrics.Addr, "MOVIETRENDS_METRICS_ADDR")
	setFromEnv(&c.Metrics.PushURL, "MOVIETRENDS_PUSHGATEWAY_URL")
	setFromEnv(&c.Tracing.Endpoint, "MOVIETRENDS_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setFromEnv assigns the first non-empty variable among keys to dst.
func setFromEnv(dst *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dst = val
			return
		}
	}
}

// Validate returns every problem found in the configuration.
func (c *Bootstrap) Validate() []error {
	var errs []error

	switch c.Input.Driver {
	case DriverFile:
	case DriverPostgres:
		if c.Data.Database.Source == "" {
			errs = append(errs, ErrMissingDatabase)
		}
	case DriverMongo:
		if c.Data.Mongo.URI == "" || c.Data.Mongo.Database == "" {
			errs = append(errs, ErrMissingMongo)
		}
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", ErrUnknownDriver, c.Input.Driver))
	}

	if _, err := ianaindex.IANA.Encoding(c.Input.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("%w, got %q", ErrInvalidEncoding, c.Input.Encoding))
	}
	if c.Output.Redis && c.Data.Redis.Addr == "" {
		errs = append(errs, ErrMissingRedis)
	}

	switch strings.ToLower(strings.TrimSpace(c.Ranking.Targets.Season)) {
	case "spring", "summer", "autumn", "winter":
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", ErrInvalidSeason, c.Ranking.Targets.Season))
	}
	if c.Ranking.PopularityFloor < 0 {
		errs = append(errs, ErrInvalidFloor)
	}
	if c.Ranking.Partitions < 0 || c.Ranking.Concurrency < 0 {
		errs = append(errs, ErrInvalidConcurrency)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, ErrInvalidSampling)
	}
	return errs
}
