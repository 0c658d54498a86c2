package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"movietrends/internal/biz"
	"movietrends/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Error reasons of a run.
const (
	ReasonUsage         = "USAGE"
	ReasonConfiguration = "CONFIGURATION"
	ReasonRankingFailed = "RANKING_FAILED"
	ReasonInternal      = "INTERNAL"
)

// Usage is printed when the arguments are wrong.
const Usage = "Usage: movietrends [-conf path] <value for k> <input folder> <output folder>"

// TrendService turns command line arguments into a trend run.
type TrendService struct {
	uc      *biz.TrendUseCase
	targets *conf.Targets
	info    *RunInfo
	log     *log.Helper
}

// NewTrendService creates a new TrendService
func NewTrendService(uc *biz.TrendUseCase, ranking *conf.Ranking, info *RunInfo, logger log.Logger) *TrendService {
	return &TrendService{
		uc:      uc,
		targets: ranking.Targets,
		info:    info,
		log:     log.NewHelper(logger),
	}
}

// ParseArgs validates the positional arguments <k> <input> <output>.
func (s *TrendService) ParseArgs(args []string) (*biz.TrendRequest, error) {
	if len(args) != 3 {
		return nil, errors.BadRequest(ReasonUsage, Usage)
	}
	k, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || k <= 0 {
		return nil, errors.BadRequest(ReasonConfiguration, fmt.Sprintf("k must be a positive integer, got %q", args[0]))
	}
	if args[1] == "" || args[2] == "" {
		return nil, errors.BadRequest(ReasonConfiguration, "input and output folders must not be empty")
	}

	season, ok := biz.ParseSeason(s.targets.Season)
	if !ok {
		return nil, errors.BadRequest(ReasonConfiguration, fmt.Sprintf("unknown target season %q", s.targets.Season))
	}
	return &biz.TrendRequest{
		K:      k,
		Input:  args[1],
		Output: args[2],
		Targets: biz.Targets{
			Age:        s.targets.Age,
			Season:     season,
			Occupation: s.targets.Occupation,
		},
	}, nil
}

// Run executes one trend run described by args. The report is returned
// whenever the analyses ran, even when some of them failed.
func (s *TrendService) Run(ctx context.Context, args []string) (*biz.TrendReport, error) {
	req, err := s.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	s.log.Infof("run %s: k=%d input=%s output=%s targets=%+v", s.info.ID, req.K, req.Input, req.Output, req.Targets)

	start := time.Now()
	report, err := s.uc.Run(ctx, req)
	if report != nil {
		s.summarize(report, time.Since(start))
	}
	if err != nil {
		return report, toKratosError(err)
	}
	return report, nil
}

func (s *TrendService) summarize(report *biz.TrendReport, elapsed time.Duration) {
	var rankings, rows int
	for _, a := range report.Analyses {
		rankings += a.Rankings
		rows += a.Rows
		status := biz.StatusSuccess
		if a.Err != nil {
			status = biz.StatusFailure
		}
		s.log.Infof("analysis=%s status=%s rankings=%d rows=%d duration=%s", a.Name, status, a.Rankings, a.Rows, a.Duration)
	}
	s.log.Infof("run %s finished in %s: %d rankings, %d rows, %d of %d ratings joined, %d failed analyses",
		s.info.ID, elapsed, rankings, rows, report.Join.Joined, report.Join.Ratings, len(report.Failed()))
}

func toKratosError(err error) error {
	switch {
	case stderrors.Is(err, biz.ErrMissingInput),
		stderrors.Is(err, biz.ErrSchemaMismatch),
		stderrors.Is(err, biz.ErrDuplicateKey):
		return errors.BadRequest(ReasonConfiguration, err.Error()).WithCause(err)
	case stderrors.Is(err, biz.ErrRankingFailed):
		return errors.InternalServer(ReasonRankingFailed, err.Error()).WithCause(err)
	default:
		return errors.InternalServer(ReasonInternal, err.Error()).WithCause(err)
	}
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch errors.Reason(err) {
	case ReasonUsage:
		return 1
	case ReasonConfiguration:
		return 2
	default:
		return 3
	}
}
