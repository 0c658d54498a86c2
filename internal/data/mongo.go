package data

import (
	"context"
	"fmt"

	"movietrends/internal/biz"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"
)

// Collections of the mongo driver.
const (
	RatingsCollection = "ratings"
	UsersCollection   = "users"
	MoviesCollection  = "movies"
)

// loadMongo reads the three collections of the configured database.
func (r *datasetRepo) loadMongo(ctx context.Context) (*biz.Dataset, error) {
	if r.data.mongo == nil {
		return nil, fmt.Errorf("%w: mongodb is not connected", biz.ErrMissingInput)
	}

	names, err := r.data.mongo.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	for _, n := range []string{RatingsCollection, UsersCollection, MoviesCollection} {
		if !present[n] {
			return nil, fmt.Errorf("%w: collection %s.%s", biz.ErrMissingInput, r.data.mongo.Name(), n)
		}
	}

	ds := &biz.Dataset{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds.Ratings, err = findAll(ctx, r.data.mongo.Collection(RatingsCollection), r.batchSize, (*ratingDocument).toBiz)
		return err
	})
	g.Go(func() (err error) {
		ds.Users, err = findAll(ctx, r.data.mongo.Collection(UsersCollection), r.batchSize, (*userDocument).toBiz)
		return err
	})
	g.Go(func() (err error) {
		ds.Movies, err = findAll(ctx, r.data.mongo.Collection(MoviesCollection), r.batchSize, (*movieDocument).toBiz)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.log.Infof("loaded %d ratings, %d users, %d movies from mongodb", len(ds.Ratings), len(ds.Users), len(ds.Movies))
	return ds, nil
}

func findAll[D any, T any](ctx context.Context, coll *mongo.Collection, batch int, toBiz func(*D) T) ([]T, error) {
	opts := options.Find()
	if batch > 0 {
		opts.SetBatchSize(int32(batch))
	}
	cur, err := coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", coll.Name(), err)
	}
	return decodeAll(ctx, cur, coll.Name(), toBiz)
}

// decodeAll drains cur, converting every document. A document that does not
// decode into D is a schema mismatch.
func decodeAll[D any, T any](ctx context.Context, cur *mongo.Cursor, name string, toBiz func(*D) T) ([]T, error) {
	defer cur.Close(ctx)

	var out []T
	for cur.Next(ctx) {
		var doc D
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", biz.ErrSchemaMismatch, name, err)
		}
		out = append(out, toBiz(&doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return out, nil
}
