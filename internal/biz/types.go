package biz

import (
	"context"
	"math"
	"strconv"
)

// NoTimestamp marks a rating whose timestamp could not be parsed.
const NoTimestamp int64 = math.MinInt64

// Rating domain model
type Rating struct {
	UserID    int
	MovieID   int
	Rating    int
	Timestamp int64
}

// User domain model
type User struct {
	UserID     int
	Gender     Gender
	Age        int
	Occupation int
}

// Movie domain model
type Movie struct {
	MovieID int
	Title   string
	Genres  string
}

// Dataset holds the three source tables of one run.
type Dataset struct {
	Ratings []Rating
	Users   []User
	Movies  []Movie
}

// JoinedRecord is one rating joined with its user and movie.
type JoinedRecord struct {
	UserID     int
	MovieID    int
	Rating     int
	Timestamp  int64
	Gender     Gender
	Age        int
	Occupation int
	Title      string
	Genres     string
	Season     Season
}

// RankingKind fixes the output columns of a ranking.
type RankingKind int

const (
	// KindAverage ranks by average rating with a popularity count.
	KindAverage RankingKind = iota
	// KindCount ranks by number of ratings.
	KindCount
	// KindRanked carries an explicit competitive rank per partition.
	KindRanked
)

// RankingRow is one line of a ranking result.
type RankingRow struct {
	Rank          int
	Partition     string
	MovieID       int
	Title         string
	AverageRating float64
	Count         int
}

// Ranking is an ordered, immutable ranking result.
type Ranking struct {
	Name  string
	Label string
	Kind  RankingKind
	K     int
	Rows  []RankingRow
}

// Columns returns the header row of the ranking's tabular form.
func (r *Ranking) Columns() []string {
	switch r.Kind {
	case KindAverage:
		return []string{"MovieID", "Title", "AverageRating", "Popularity"}
	case KindRanked:
		return []string{"rank", "Genre", "MovieID", "Title", "count"}
	default:
		return []string{"MovieID", "Title", "count"}
	}
}

// Records returns the rows of the ranking formatted for display and export.
// Average ratings are rounded to two decimals here and nowhere else.
func (r *Ranking) Records() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		id := strconv.Itoa(row.MovieID)
		count := strconv.Itoa(row.Count)
		switch r.Kind {
		case KindAverage:
			out = append(out, []string{id, row.Title, FormatAverage(row.AverageRating), count})
		case KindRanked:
			out = append(out, []string{strconv.Itoa(row.Rank), row.Partition, id, row.Title, count})
		default:
			out = append(out, []string{id, row.Title, count})
		}
	}
	return out
}

// FormatAverage renders an average rating with two decimals.
func FormatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Targets selects the filter value of each filtered ranking.
type Targets struct {
	Age        int
	Season     Season
	Occupation int
}

// TrendRequest describes one run of the six analyses.
type TrendRequest struct {
	K       int
	Input   string
	Output  string
	Targets Targets
}

// DatasetRepo loads the three source tables.
type DatasetRepo interface {
	Load(ctx context.Context, input string) (*Dataset, error)
}

// ResultSink receives finished rankings. out is the output location of the run;
// sinks that do not write files ignore it.
type ResultSink interface {
	Emit(ctx context.Context, out string, r *Ranking) error
}

// RunObserver is implemented by sinks that announce the start and the end of
// a run.
type RunObserver interface {
	RunStarted(analyses []string)
	RunFinished(report *TrendReport)
}

// RunMetrics records run progress. Implementations must be safe for
// concurrent use.
type RunMetrics interface {
	AddRowsLoaded(table string, n int)
	AddRowsDropped(reason string, n int)
	ObserveAnalysis(analysis, status string, seconds float64)
	SetResultRows(ranking string, n int)
}
