package biz

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Output names of the rankings.
const (
	NameAllTime     = "top_movies_all_time_output"
	NameAgeGroup    = "top_movies_age_group_output"
	NameSeason      = "top_movies_season_output"
	NameOccupation  = "top_movies_occupation_output"
	NameMale        = "top_movies_male_output"
	NameFemale      = "top_movies_female_output"
	NameGenrePrefix = "top_movies_genre_output_"
)

// DefaultPopularityFloor is the rating count a movie must exceed to enter the
// all-time ranking.
const DefaultPopularityFloor = 500

// RankingOptions tunes the ranking engine.
type RankingOptions struct {
	// PopularityFloor excludes movies with at most this many ratings from
	// the all-time ranking.
	PopularityFloor int
	// Partitions is the number of concurrent partitions per aggregation.
	// Zero means GOMAXPROCS.
	Partitions int
}

// RankingUseCase computes the top-k rankings. Every method is a pure function
// of its arguments: tables and targets are passed in, results are returned.
type RankingUseCase struct {
	ref    *ReferenceData
	opts   RankingOptions
	tracer trace.Tracer
	log    *log.Helper
}

// NewRankingUseCase creates a new RankingUseCase instance
func NewRankingUseCase(ref *ReferenceData, opts RankingOptions, tracer trace.Tracer, logger log.Logger) *RankingUseCase {
	return &RankingUseCase{
		ref:    ref,
		opts:   opts,
		tracer: tracer,
		log:    log.NewHelper(logger),
	}
}

// TopAllTime ranks movies by average rating over the ratings joined with
// movies only. Movies rated no more than the popularity floor are excluded.
func (uc *RankingUseCase) TopAllTime(ctx context.Context, ratings []Rating, movies []Movie, k int) (*Ranking, error) {
	ctx, span := uc.startSpan(ctx, NameAllTime, k)
	defer span.End()

	idx, err := movieIndex(movies)
	if err != nil {
		return nil, uc.fail(span, err)
	}
	accs, err := aggregate(ctx, ratings, uc.opts.Partitions, func(r *Rating, add addFunc) {
		if m, ok := idx[r.MovieID]; ok {
			add(groupKey{MovieID: r.MovieID, Title: m.Title}, r.Rating)
		}
	})
	if err != nil {
		return nil, uc.fail(span, err)
	}

	groups := slices.DeleteFunc(reduce(accs), func(g group) bool {
		return g.count <= uc.opts.PopularityFloor
	})
	slices.SortFunc(groups, byAverage)

	r := &Ranking{
		Name:  NameAllTime,
		Label: fmt.Sprintf("Top %d Most Popular Movies of All Time", k),
		Kind:  KindAverage,
		K:     k,
		Rows:  topK(groups, k),
	}
	uc.log.Debugf("ranking %s: %d eligible movies, %d rows", r.Name, len(groups), len(r.Rows))
	return r, nil
}

// TopByAge ranks movies by rating count among users of one age bucket.
func (uc *RankingUseCase) TopByAge(ctx context.Context, rows []JoinedRecord, age, k int) (*Ranking, error) {
	label := fmt.Sprintf("Top %d Movies for Age Range '%s'", k, uc.ref.AgeLabel(age))
	return uc.topByCount(ctx, NameAgeGroup, label, rows, k, func(r *JoinedRecord) bool {
		return r.Age == age
	})
}

// TopBySeason ranks movies by rating count among ratings made in one season.
func (uc *RankingUseCase) TopBySeason(ctx context.Context, rows []JoinedRecord, season Season, k int) (*Ranking, error) {
	label := fmt.Sprintf("Top %d Movies for %s Season", k, uc.ref.SeasonLabel(season))
	return uc.topByCount(ctx, NameSeason, label, rows, k, func(r *JoinedRecord) bool {
		return r.Season == season && season != SeasonUnknown
	})
}

// TopByOccupation ranks movies by rating count among users of one occupation.
func (uc *RankingUseCase) TopByOccupation(ctx context.Context, rows []JoinedRecord, occupation, k int) (*Ranking, error) {
	label := fmt.Sprintf("Top %d Movies for Users with Occupation '%s'", k, uc.ref.OccupationLabel(occupation))
	return uc.topByCount(ctx, NameOccupation, label, rows, k, func(r *JoinedRecord) bool {
		return r.Occupation == occupation
	})
}

// TopByGender ranks movies by rating count among users of one gender.
func (uc *RankingUseCase) TopByGender(ctx context.Context, rows []JoinedRecord, gender Gender, k int) (*Ranking, error) {
	label := fmt.Sprintf("Top %d Movies for %s Users", k, uc.ref.GenderLabel(gender))
	return uc.topByCount(ctx, genderOutputName(gender), label, rows, k, func(r *JoinedRecord) bool {
		return r.Gender == gender
	})
}

// TopByGenre ranks movies by rating count within every canonical genre using
// competitive ranking. One ranking per canonical genre is returned, in list
// order, empty when no movie of that genre was rated. A genre may hold more
// than k rows when movies tie at the cutoff rank.
func (uc *RankingUseCase) TopByGenre(ctx context.Context, rows []JoinedRecord, k int) ([]*Ranking, error) {
	ctx, span := uc.startSpan(ctx, "top_movies_genre_output", k)
	defer span.End()

	accs, err := aggregate(ctx, rows, uc.opts.Partitions, func(r *JoinedRecord, add addFunc) {
		for genre := range ExplodeGenres(r.Genres) {
			add(groupKey{Partition: genre, MovieID: r.MovieID, Title: r.Title}, r.Rating)
		}
	})
	if err != nil {
		return nil, uc.fail(span, err)
	}

	partitions := make(map[string][]group)
	for _, g := range reduce(accs) {
		partitions[g.key.Partition] = append(partitions[g.key.Partition], g)
	}

	genres := uc.ref.Genres()
	out := make([]*Ranking, 0, len(genres))
	for _, genre := range genres {
		out = append(out, &Ranking{
			Name:  NameGenrePrefix + genre,
			Label: fmt.Sprintf("Top %d movies for %s genre", k, genre),
			Kind:  KindRanked,
			K:     k,
			Rows:  competitiveTopK(partitions[genre], k),
		})
	}
	span.SetAttributes(attribute.Int("ranking.partitions", len(partitions)))
	return out, nil
}

func (uc *RankingUseCase) topByCount(ctx context.Context, name, label string, rows []JoinedRecord, k int, keep func(*JoinedRecord) bool) (*Ranking, error) {
	ctx, span := uc.startSpan(ctx, name, k)
	defer span.End()

	accs, err := aggregate(ctx, rows, uc.opts.Partitions, func(r *JoinedRecord, add addFunc) {
		if keep(r) {
			add(groupKey{MovieID: r.MovieID, Title: r.Title}, r.Rating)
		}
	})
	if err != nil {
		return nil, uc.fail(span, err)
	}

	groups := reduce(accs)
	slices.SortFunc(groups, byCount)
	r := &Ranking{
		Name:  name,
		Label: label,
		Kind:  KindCount,
		K:     k,
		Rows:  topK(groups, k),
	}
	span.SetAttributes(attribute.Int("ranking.groups", len(groups)))
	uc.log.Debugf("ranking %s: %d groups, %d rows", name, len(groups), len(r.Rows))
	return r, nil
}

func (uc *RankingUseCase) startSpan(ctx context.Context, name string, k int) (context.Context, trace.Span) {
	return uc.tracer.Start(ctx, "ranking."+name, trace.WithAttributes(
		attribute.String("ranking.name", name),
		attribute.Int("ranking.k", k),
	))
}

func (uc *RankingUseCase) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func genderOutputName(g Gender) string {
	switch g {
	case GenderMale:
		return NameMale
	case GenderFemale:
		return NameFemale
	default:
		return fmt.Sprintf("top_movies_gender_%s_output", g)
	}
}

// byAverage orders by unrounded average desc, count desc, title asc.
func byAverage(a, b group) int {
	return cmp.Or(
		cmp.Compare(b.average, a.average),
		cmp.Compare(b.count, a.count),
		strings.Compare(a.key.Title, b.key.Title),
		cmp.Compare(a.key.MovieID, b.key.MovieID),
	)
}

// byCount orders by count desc, title asc.
func byCount(a, b group) int {
	return cmp.Or(
		cmp.Compare(b.count, a.count),
		strings.Compare(a.key.Title, b.key.Title),
		cmp.Compare(a.key.MovieID, b.key.MovieID),
	)
}

// topK returns the first k sorted groups as ranking rows.
func topK(sorted []group, k int) []RankingRow {
	if k <= 0 {
		return []RankingRow{}
	}
	n := min(k, len(sorted))
	rows := make([]RankingRow, 0, n)
	for _, g := range sorted[:n] {
		rows = append(rows, RankingRow{
			MovieID:       g.key.MovieID,
			Title:         g.key.Title,
			AverageRating: g.average,
			Count:         g.count,
		})
	}
	return rows
}

// competitiveTopK ranks one partition by count with standard competitive
// ranking (1, 2, 2, 4) and keeps every group ranked k or better.
func competitiveTopK(groups []group, k int) []RankingRow {
	rows := []RankingRow{}
	if k <= 0 || len(groups) == 0 {
		return rows
	}
	sorted := slices.Clone(groups)
	slices.SortFunc(sorted, byCount)

	rank := 0
	for i, g := range sorted {
		if i == 0 || g.count != sorted[i-1].count {
			rank = i + 1
		}
		if rank > k {
			break
		}
		rows = append(rows, RankingRow{
			Rank:          rank,
			Partition:     g.key.Partition,
			MovieID:       g.key.MovieID,
			Title:         g.key.Title,
			AverageRating: g.average,
			Count:         g.count,
		})
	}
	return rows
}
