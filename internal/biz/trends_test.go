package biz

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

type fakeRepo struct {
	ds  *Dataset
	err error
}

func (f *fakeRepo) Load(_ context.Context, _ string) (*Dataset, error) {
	return f.ds, f.err
}

type recordingSink struct {
	mu      sync.Mutex
	emitted map[string]*Ranking
	outs    map[string]bool
	failOn  func(name string) bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{emitted: make(map[string]*Ranking), outs: make(map[string]bool)}
}

func (s *recordingSink) Emit(_ context.Context, out string, r *Ranking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil && s.failOn(r.Name) {
		return errors.New("disk full")
	}
	s.emitted[r.Name] = r
	s.outs[out] = true
	return nil
}

type countingMetrics struct {
	mu       sync.Mutex
	loaded   map[string]int
	dropped  map[string]int
	statuses map[string]string
	rows     map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		loaded:   make(map[string]int),
		dropped:  make(map[string]int),
		statuses: make(map[string]string),
		rows:     make(map[string]int),
	}
}

func (m *countingMetrics) AddRowsLoaded(table string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded[table] += n
}

func (m *countingMetrics) AddRowsDropped(reason string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason] += n
}

func (m *countingMetrics) ObserveAnalysis(analysis, status string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[analysis] = status
}

func (m *countingMetrics) SetResultRows(ranking string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[ranking] = n
}

func testDataset() *Dataset {
	return &Dataset{
		Ratings: []Rating{
			{UserID: 1, MovieID: 1, Rating: 5, Timestamp: 954547200}, // 2000-04-01
			{UserID: 2, MovieID: 1, Rating: 4, Timestamp: 954547200},
			{UserID: 1, MovieID: 2, Rating: 3, Timestamp: 978300760}, // 2000-12-31
			{UserID: 3, MovieID: 2, Rating: 2, Timestamp: 954547200},
			{UserID: 7, MovieID: 2, Rating: 2, Timestamp: 954547200},
		},
		Users: []User{
			{UserID: 1, Gender: GenderMale, Age: 18, Occupation: 7},
			{UserID: 2, Gender: GenderFemale, Age: 18, Occupation: 7},
			{UserID: 3, Gender: GenderFemale, Age: 25, Occupation: 3},
		},
		Movies: []Movie{
			{MovieID: 1, Title: "Toy Story (1995)", Genres: "Animation|Children's|Comedy"},
			{MovieID: 2, Title: "Heat (1995)", Genres: "Action|Crime|Thriller"},
		},
	}
}

func newTestTrends(repo DatasetRepo, sinks []ResultSink, metrics RunMetrics) *TrendUseCase {
	logger := log.NewStdLogger(io.Discard)
	return NewTrendUseCase(repo, newTestRanking(0, 2), sinks, metrics, TrendOptions{Timeout: time.Minute}, logger)
}

func defaultRequest() *TrendRequest {
	return &TrendRequest{
		K:       2,
		Input:   "in",
		Output:  "out",
		Targets: Targets{Age: 18, Season: SeasonSpring, Occupation: 7},
	}
}

func TestTrendUseCaseRun(t *testing.T) {
	sink := newRecordingSink()
	metrics := newCountingMetrics()
	uc := newTestTrends(&fakeRepo{ds: testDataset()}, []ResultSink{sink}, metrics)

	report, err := uc.Run(context.Background(), defaultRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(report.Analyses) != 6 {
		t.Fatalf("len(Analyses) = %d, want 6", len(report.Analyses))
	}
	if failed := report.Failed(); len(failed) != 0 {
		t.Errorf("Failed() = %+v, want none", failed)
	}
	if report.Join.Joined != 4 || report.Join.UnknownUser != 1 {
		t.Errorf("Join = %+v, want 4 joined and 1 unknown user", report.Join)
	}

	// 1 all-time + 1 age + 1 season + 1 occupation + 2 gender + 18 genre
	if len(sink.emitted) != 24 {
		t.Errorf("emitted %d rankings, want 24", len(sink.emitted))
	}
	if !sink.outs["out"] || len(sink.outs) != 1 {
		t.Errorf("sink received outputs %v, want only %q", sink.outs, "out")
	}

	allTime := sink.emitted[NameAllTime]
	if allTime == nil || len(allTime.Rows) != 2 || allTime.Rows[0].Title != "Toy Story (1995)" {
		t.Errorf("all-time ranking = %+v", allTime)
	}
	// Only the April ratings by known users fall in spring.
	if season := sink.emitted[NameSeason]; len(season.Rows) != 2 || season.Rows[0].Count != 2 {
		t.Errorf("season ranking rows = %+v", season.Rows)
	}
	if female := sink.emitted[NameFemale]; len(female.Rows) != 2 {
		t.Errorf("female ranking rows = %+v", female.Rows)
	}
	if action := sink.emitted[NameGenrePrefix+"Action"]; len(action.Rows) != 1 || action.Rows[0].Rank != 1 {
		t.Errorf("action ranking rows = %+v", action.Rows)
	}

	if metrics.loaded["ratings"] != 5 || metrics.loaded["users"] != 3 || metrics.loaded["movies"] != 2 {
		t.Errorf("loaded = %v", metrics.loaded)
	}
	if metrics.dropped["unknown_user"] != 1 {
		t.Errorf("dropped = %v", metrics.dropped)
	}
	for _, name := range []string{AnalysisAllTime, AnalysisAgeGroup, AnalysisSeason, AnalysisOccupation, AnalysisGender, AnalysisGenre} {
		if metrics.statuses[name] != StatusSuccess {
			t.Errorf("status[%s] = %q, want %q", name, metrics.statuses[name], StatusSuccess)
		}
	}
}

func TestTrendUseCaseIsolatesSinkFailures(t *testing.T) {
	sink := newRecordingSink()
	sink.failOn = func(name string) bool { return name == NameOccupation || name == NameMale }
	metrics := newCountingMetrics()
	uc := newTestTrends(&fakeRepo{ds: testDataset()}, []ResultSink{sink}, metrics)

	report, err := uc.Run(context.Background(), defaultRequest())
	if !errors.Is(err, ErrRankingFailed) {
		t.Fatalf("Run() error = %v, want ErrRankingFailed", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error %q does not carry the sink failure", err)
	}

	var failed []string
	for _, a := range report.Failed() {
		failed = append(failed, a.Name)
	}
	slices.Sort(failed)
	if want := []string{AnalysisGender, AnalysisOccupation}; !slices.Equal(failed, want) {
		t.Errorf("failed analyses = %v, want %v", failed, want)
	}

	// The other rankings, including the female half of the gender analysis,
	// were still written.
	for _, name := range []string{NameAllTime, NameAgeGroup, NameSeason, NameFemale, NameGenrePrefix + "Western"} {
		if sink.emitted[name] == nil {
			t.Errorf("ranking %s was not emitted", name)
		}
	}
	if metrics.statuses[AnalysisGender] != StatusFailure || metrics.statuses[AnalysisGenre] != StatusSuccess {
		t.Errorf("statuses = %v", metrics.statuses)
	}
}

func TestTrendUseCaseLoadFailure(t *testing.T) {
	uc := newTestTrends(&fakeRepo{err: ErrMissingInput}, nil, NopMetrics{})
	if _, err := uc.Run(context.Background(), defaultRequest()); !errors.Is(err, ErrMissingInput) {
		t.Errorf("Run() error = %v, want ErrMissingInput", err)
	}
}

func TestTrendUseCaseJoinFailure(t *testing.T) {
	ds := testDataset()
	ds.Users = append(ds.Users, ds.Users[0])
	uc := newTestTrends(&fakeRepo{ds: ds}, nil, NopMetrics{})
	if _, err := uc.Run(context.Background(), defaultRequest()); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Run() error = %v, want ErrDuplicateKey", err)
	}
}

func TestTrendUseCaseConcurrencyLimit(t *testing.T) {
	sink := newRecordingSink()
	uc := NewTrendUseCase(&fakeRepo{ds: testDataset()}, newTestRanking(0, 1), []ResultSink{sink}, NopMetrics{},
		TrendOptions{Concurrency: 1}, log.NewStdLogger(io.Discard))

	report, err := uc.Run(context.Background(), defaultRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Analyses) != 6 || len(sink.emitted) != 24 {
		t.Errorf("analyses = %d, emitted = %d", len(report.Analyses), len(sink.emitted))
	}
}

type observingSink struct {
	*recordingSink
	started  []string
	finished *TrendReport
}

func (s *observingSink) RunStarted(analyses []string)    { s.started = analyses }
func (s *observingSink) RunFinished(report *TrendReport) { s.finished = report }

func TestTrendUseCaseNotifiesObservers(t *testing.T) {
	sink := &observingSink{recordingSink: newRecordingSink()}
	uc := newTestTrends(&fakeRepo{ds: testDataset()}, []ResultSink{sink}, NopMetrics{})

	report, err := uc.Run(context.Background(), defaultRequest())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{AnalysisAllTime, AnalysisAgeGroup, AnalysisSeason, AnalysisOccupation, AnalysisGender, AnalysisGenre}
	if !slices.Equal(sink.started, want) {
		t.Errorf("RunStarted(%v), want %v", sink.started, want)
	}
	if sink.finished != report {
		t.Error("RunFinished did not receive the run report")
	}
}

// stallingSink blocks on genre rankings until the analysis context ends.
type stallingSink struct {
	*recordingSink
}

func (s *stallingSink) Emit(ctx context.Context, out string, r *Ranking) error {
	if strings.HasPrefix(r.Name, NameGenrePrefix) {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.recordingSink.Emit(ctx, out, r)
}

func TestTrendUseCaseTimeoutDiscardsOnlyThatAnalysis(t *testing.T) {
	sink := &stallingSink{recordingSink: newRecordingSink()}
	metrics := newCountingMetrics()
	uc := NewTrendUseCase(&fakeRepo{ds: testDataset()}, newTestRanking(0, 2), []ResultSink{sink}, metrics,
		TrendOptions{Timeout: 50 * time.Millisecond}, log.NewStdLogger(io.Discard))

	report, err := uc.Run(context.Background(), defaultRequest())
	if !errors.Is(err, ErrRankingFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want ErrRankingFailed wrapping DeadlineExceeded", err)
	}

	failed := report.Failed()
	if len(failed) != 1 || failed[0].Name != AnalysisGenre {
		t.Fatalf("Failed() = %+v, want only %s", failed, AnalysisGenre)
	}
	if !errors.Is(failed[0].Err, context.DeadlineExceeded) {
		t.Errorf("genre error = %v, want DeadlineExceeded", failed[0].Err)
	}

	for _, name := range []string{NameAllTime, NameAgeGroup, NameSeason, NameOccupation, NameMale, NameFemale} {
		if sink.emitted[name] == nil {
			t.Errorf("ranking %s was not emitted", name)
		}
	}
	if len(sink.emitted) != 6 {
		t.Errorf("emitted %d rankings, want 6", len(sink.emitted))
	}
	for _, name := range []string{AnalysisAllTime, AnalysisAgeGroup, AnalysisSeason, AnalysisOccupation, AnalysisGender} {
		if metrics.statuses[name] != StatusSuccess {
			t.Errorf("status[%s] = %q, want %q", name, metrics.statuses[name], StatusSuccess)
		}
	}
	if metrics.statuses[AnalysisGenre] != StatusFailure {
		t.Errorf("status[%s] = %q, want %q", AnalysisGenre, metrics.statuses[AnalysisGenre], StatusFailure)
	}
}
