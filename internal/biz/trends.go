package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

// Analysis names, also used as metric labels.
const (
	AnalysisAllTime    = "all_time"
	AnalysisAgeGroup   = "age_group"
	AnalysisSeason     = "season"
	AnalysisOccupation = "occupation"
	AnalysisGender     = "gender"
	AnalysisGenre      = "genre"
)

// Analysis status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// DefaultAnalysisTimeout bounds a single analysis.
const DefaultAnalysisTimeout = 5 * time.Minute

// TrendOptions tunes how the analyses of a run are scheduled.
type TrendOptions struct {
	// Timeout bounds each analysis independently.
	Timeout time.Duration
	// Concurrency caps the analyses running at once. Zero runs all six together.
	Concurrency int
}

// AnalysisResult reports the outcome of one analysis.
type AnalysisResult struct {
	Name     string
	Rankings int
	Rows     int
	Duration time.Duration
	Err      error
}

// TrendReport summarises a run.
type TrendReport struct {
	Join     JoinStats
	Analyses []AnalysisResult
}

// Failed returns the analyses that did not complete.
func (r *TrendReport) Failed() []AnalysisResult {
	var failed []AnalysisResult
	for _, a := range r.Analyses {
		if a.Err != nil {
			failed = append(failed, a)
		}
	}
	return failed
}

type analysis struct {
	name string
	run  func(ctx context.Context) ([]*Ranking, error)
}

// TrendUseCase loads the dataset once and runs the six analyses over it.
type TrendUseCase struct {
	repo    DatasetRepo
	ranking *RankingUseCase
	sinks   []ResultSink
	metrics RunMetrics
	opts    TrendOptions
	log     *log.Helper
}

// NewTrendUseCase creates a new TrendUseCase instance
func NewTrendUseCase(repo DatasetRepo, ranking *RankingUseCase, sinks []ResultSink, metrics RunMetrics, opts TrendOptions, logger log.Logger) *TrendUseCase {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAnalysisTimeout
	}
	return &TrendUseCase{
		repo:    repo,
		ranking: ranking,
		sinks:   sinks,
		metrics: metrics,
		opts:    opts,
		log:     log.NewHelper(logger),
	}
}

// Run loads the source tables, builds the joined table and runs every
// analysis concurrently. Loading and joining errors abort the run. An analysis
// that fails or times out does not stop the others; every failure is reported
// in the returned report and joined into the returned error.
func (uc *TrendUseCase) Run(ctx context.Context, req *TrendRequest) (*TrendReport, error) {
	ds, err := uc.repo.Load(ctx, req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	uc.metrics.AddRowsLoaded("ratings", len(ds.Ratings))
	uc.metrics.AddRowsLoaded("users", len(ds.Users))
	uc.metrics.AddRowsLoaded("movies", len(ds.Movies))

	joined, stats, err := BuildJoined(ds)
	if err != nil {
		return nil, fmt.Errorf("failed to join dataset: %w", err)
	}
	uc.metrics.AddRowsDropped("unknown_user", stats.UnknownUser)
	uc.metrics.AddRowsDropped("unknown_movie", stats.UnknownMovie)
	uc.log.Infof("joined %d of %d ratings (%d unknown user, %d unknown movie)",
		stats.Joined, stats.Ratings, stats.UnknownUser, stats.UnknownMovie)

	analyses := uc.analyses(ds, joined, req)
	report := &TrendReport{
		Join:     stats,
		Analyses: make([]AnalysisResult, len(analyses)),
	}
	names := make([]string, len(analyses))
	for i, a := range analyses {
		names[i] = a.name
	}
	uc.observe(func(o RunObserver) { o.RunStarted(names) })

	var g errgroup.Group
	if uc.opts.Concurrency > 0 {
		g.SetLimit(uc.opts.Concurrency)
	}
	for i, a := range analyses {
		g.Go(func() error {
			report.Analyses[i] = uc.runAnalysis(ctx, a, req.Output)
			return nil
		})
	}
	_ = g.Wait()
	uc.observe(func(o RunObserver) { o.RunFinished(report) })

	var errs []error
	for _, a := range report.Failed() {
		errs = append(errs, fmt.Errorf("%w: %s: %w", ErrRankingFailed, a.Name, a.Err))
	}
	return report, errors.Join(errs...)
}

func (uc *TrendUseCase) analyses(ds *Dataset, joined []JoinedRecord, req *TrendRequest) []analysis {
	k, t := req.K, req.Targets
	single := func(r *Ranking, err error) ([]*Ranking, error) {
		if err != nil {
			return nil, err
		}
		return []*Ranking{r}, nil
	}
	return []analysis{
		{AnalysisAllTime, func(ctx context.Context) ([]*Ranking, error) {
			return single(uc.ranking.TopAllTime(ctx, ds.Ratings, ds.Movies, k))
		}},
		{AnalysisAgeGroup, func(ctx context.Context) ([]*Ranking, error) {
			return single(uc.ranking.TopByAge(ctx, joined, t.Age, k))
		}},
		{AnalysisSeason, func(ctx context.Context) ([]*Ranking, error) {
			return single(uc.ranking.TopBySeason(ctx, joined, t.Season, k))
		}},
		{AnalysisOccupation, func(ctx context.Context) ([]*Ranking, error) {
			return single(uc.ranking.TopByOccupation(ctx, joined, t.Occupation, k))
		}},
		{AnalysisGender, func(ctx context.Context) ([]*Ranking, error) {
			male, err := uc.ranking.TopByGender(ctx, joined, GenderMale, k)
			if err != nil {
				return nil, err
			}
			female, err := uc.ranking.TopByGender(ctx, joined, GenderFemale, k)
			if err != nil {
				return nil, err
			}
			return []*Ranking{male, female}, nil
		}},
		{AnalysisGenre, func(ctx context.Context) ([]*Ranking, error) {
			return uc.ranking.TopByGenre(ctx, joined, k)
		}},
	}
}

// runAnalysis computes one analysis under its own timeout and hands every
// ranking to every sink. A sink error fails the analysis but the remaining
// rankings and sinks are still served.
func (uc *TrendUseCase) runAnalysis(parent context.Context, a analysis, out string) AnalysisResult {
	ctx, cancel := context.WithTimeout(parent, uc.opts.Timeout)
	defer cancel()

	start := time.Now()
	res := AnalysisResult{Name: a.name}
	rankings, err := a.run(ctx)
	if err == nil {
		var errs []error
		for _, r := range rankings {
			res.Rankings++
			res.Rows += len(r.Rows)
			uc.metrics.SetResultRows(r.Name, len(r.Rows))
			errs = append(errs, uc.emit(ctx, out, r))
		}
		err = errors.Join(errs...)
	}
	res.Duration = time.Since(start)
	res.Err = err

	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		uc.log.Errorf("analysis %s failed after %s: %v", a.name, res.Duration, err)
	} else {
		uc.log.Infof("analysis %s completed in %s: %d rankings, %d rows", a.name, res.Duration, res.Rankings, res.Rows)
	}
	uc.metrics.ObserveAnalysis(a.name, status, res.Duration.Seconds())
	return res
}

func (uc *TrendUseCase) emit(ctx context.Context, out string, r *Ranking) error {
	var errs []error
	for _, sink := range uc.sinks {
		if err := sink.Emit(ctx, out, r); err != nil {
			errs = append(errs, fmt.Errorf("emit %s: %w", r.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (uc *TrendUseCase) observe(fn func(RunObserver)) {
	for _, sink := range uc.sinks {
		if o, ok := sink.(RunObserver); ok {
			fn(o)
		}
	}
}

// NopMetrics discards run metrics.
type NopMetrics struct{}

func (NopMetrics) AddRowsLoaded(string, int)               {}
func (NopMetrics) AddRowsDropped(string, int)              {}
func (NopMetrics) ObserveAnalysis(string, string, float64) {}
func (NopMetrics) SetResultRows(string, int)               {}
