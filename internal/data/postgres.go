package data

import (
	"context"
	"fmt"

	"movietrends/internal/biz"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const defaultBatchSize = 1000

// loadPostgres reads the ratings, users and movies tables in primary key
// batches. ratings has a composite key, which FindInBatches cannot page, so it
// is read with keyset pagination on (user_id, movie_id).
func (r *datasetRepo) loadPostgres(ctx context.Context) (*biz.Dataset, error) {
	if r.data.db == nil {
		return nil, fmt.Errorf("%w: database is not connected", biz.ErrMissingInput)
	}
	for _, model := range []any{&Rating{}, &User{}, &Movie{}} {
		if !r.data.db.Migrator().HasTable(model) {
			return nil, fmt.Errorf("%w: table %T not found", biz.ErrMissingInput, model)
		}
	}

	ds := &biz.Dataset{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds.Ratings, err = pageRatings(ctx, r.batchSize, func(after *ratingKey, size int) ([]Rating, error) {
			var batch []Rating
			err := ratingsAfter(r.data.db.WithContext(ctx), after, size).Find(&batch).Error
			return batch, err
		})
		return err
	})
	g.Go(func() (err error) {
		ds.Users, err = findInBatches(ctx, r.data.db, r.batchSize, (*User).toBiz)
		return err
	})
	g.Go(func() (err error) {
		ds.Movies, err = findInBatches(ctx, r.data.db, r.batchSize, (*Movie).toBiz)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.log.Infof("loaded %d ratings, %d users, %d movies from postgres", len(ds.Ratings), len(ds.Users), len(ds.Movies))
	return ds, nil
}

// ratingKey is the primary key of the ratings table.
type ratingKey struct {
	UserID  int
	MovieID int
}

// ratingPage returns at most size ratings ordered by key and strictly after
// the given key, or from the start when after is nil.
type ratingPage func(after *ratingKey, size int) ([]Rating, error)

// ratingsAfter builds the query for one page of ratings.
func ratingsAfter(db *gorm.DB, after *ratingKey, size int) *gorm.DB {
	q := db.Model(&Rating{}).Order("user_id, movie_id").Limit(size)
	if after != nil {
		q = q.Where("(user_id, movie_id) > (?, ?)", after.UserID, after.MovieID)
	}
	return q
}

// pageRatings reads pages until one comes back short.
func pageRatings(ctx context.Context, size int, page ratingPage) ([]biz.Rating, error) {
	if size <= 0 {
		size = defaultBatchSize
	}
	var (
		out   []biz.Rating
		after *ratingKey
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := page(after, size)
		if err != nil {
			return nil, fmt.Errorf("failed to load ratings: %w", err)
		}
		for i := range batch {
			out = append(out, batch[i].toBiz())
		}
		if len(batch) < size {
			return out, nil
		}
		last := batch[len(batch)-1]
		after = &ratingKey{UserID: last.UserID, MovieID: last.MovieID}
	}
}

// findInBatches pages a table with a single column primary key.
func findInBatches[M any, T any](ctx context.Context, db *gorm.DB, size int, toBiz func(*M) T) ([]T, error) {
	if size <= 0 {
		size = defaultBatchSize
	}
	var (
		out   []T
		batch []M
	)
	err := db.WithContext(ctx).FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			out = append(out, toBiz(&batch[i]))
		}
		return ctx.Err()
	}).Error
	if err != nil {
		var zero M
		return nil, fmt.Errorf("failed to load %T rows: %w", zero, err)
	}
	return out, nil
}
