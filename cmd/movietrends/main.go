package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"movietrends/internal/conf"
	"movietrends/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "movietrends"
	// Version is the version of the compiled software.
	Version = "dev"
	// flagconf is the config flag.
	flagconf string
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	os.Exit(run())
}

// parseFlags parses the command line flags and returns the positional
// arguments. A negative number is taken as the first positional argument so
// that a bad k reaches argument validation instead of failing as an unknown
// flag.
func parseFlags(args []string) ([]string, error) {
	fs := flag.NewFlagSet(Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&flagconf, "conf", "", "config path, eg: -conf configs/config.yaml")

	for i, a := range args {
		if a == "--" {
			break
		}
		if _, err := strconv.Atoi(a); err == nil && strings.HasPrefix(a, "-") && !isConfFlag(args, i-1) {
			args = slices.Insert(slices.Clone(args), i, "--")
			break
		}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// isConfFlag reports whether args[i] is a -conf flag expecting a value.
func isConfFlag(args []string, i int) bool {
	return i >= 0 && (args[i] == "-conf" || args[i] == "--conf")
}

func run() int {
	positional, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n%s\n", err, service.Usage)
		return 1
	}
	if len(positional) != 3 {
		fmt.Fprintln(os.Stderr, service.Usage)
		return 1
	}

	info := &service.RunInfo{ID: newRunID(), Name: Name, Version: Version}
	c, errs := conf.Load(configPath())
	if len(errs) > 0 {
		logger := newLogger(conf.DefaultLogLevel, info)
		for _, err := range errs {
			log.NewHelper(logger).Errorf("invalid configuration: %v", err)
		}
		return 2
	}
	logger := newLogger(c.Log.Level, info)
	helper := log.NewHelper(logger)

	a, cleanup, err := wireApp(c, info, logger)
	if err != nil {
		helper.Errorf("failed to initialize: %v", err)
		return 2
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx, positional)
}

func newLogger(level string, info *service.RunInfo) log.Logger {
	logger := log.With(log.NewStdLogger(os.Stderr),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", info.Name,
		"service.version", info.Version,
		"run.id", info.ID,
	)
	return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(level)))
}

// configPath prefers -conf and falls back to configs/config.yaml when it
// exists.
func configPath() string {
	if flagconf != "" {
		return flagconf
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
