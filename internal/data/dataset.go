package data

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"movietrends/internal/biz"
	"movietrends/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Source files of the file driver.
const (
	RatingsFile    = "ratings.dat"
	UsersFile      = "users.dat"
	MoviesFile     = "movies.dat"
	FieldSeparator = "::"
)

const maxLineSize = 1 << 20

type datasetRepo struct {
	data      *Data
	driver    string
	encoding  string
	batchSize int
	log       *log.Helper
}

// NewDatasetRepo creates a dataset repository reading from the configured driver
func NewDatasetRepo(data *Data, in *conf.Input, c *conf.Data, logger log.Logger) biz.DatasetRepo {
	return &datasetRepo{
		data:      data,
		driver:    in.Driver,
		encoding:  in.Encoding,
		batchSize: c.Database.BatchSize,
		log:       log.NewHelper(logger),
	}
}

func (r *datasetRepo) Load(ctx context.Context, input string) (*biz.Dataset, error) {
	switch r.driver {
	case conf.DriverPostgres:
		return r.loadPostgres(ctx)
	case conf.DriverMongo:
		return r.loadMongo(ctx)
	default:
		return r.loadFiles(ctx, input)
	}
}

// loadFiles reads ratings.dat, users.dat and movies.dat from dir concurrently.
func (r *datasetRepo) loadFiles(ctx context.Context, dir string) (*biz.Dataset, error) {
	enc, err := ianaindex.IANA.Encoding(r.encoding)
	if err != nil {
		return nil, fmt.Errorf("unknown input encoding %q: %w", r.encoding, err)
	}

	ds := &biz.Dataset{}
	var skipped [3]int
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ds.Ratings, skipped[0], err = readTable(ctx, filepath.Join(dir, RatingsFile), enc, 4, parseRating)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Users, skipped[1], err = readTable(ctx, filepath.Join(dir, UsersFile), enc, 4, parseUser)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Movies, skipped[2], err = readTable(ctx, filepath.Join(dir, MoviesFile), enc, 3, parseMovie)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, name := range []string{RatingsFile, UsersFile, MoviesFile} {
		if skipped[i] > 0 {
			r.log.Warnf("skipped %d malformed rows in %s", skipped[i], name)
		}
	}
	r.log.Infof("loaded %d ratings, %d users, %d movies from %s", len(ds.Ratings), len(ds.Users), len(ds.Movies), dir)
	return ds, nil
}

// readTable parses a headerless "::" separated file. A line with fewer than
// minFields fields is a schema mismatch; a line parse rejects is skipped and
// counted.
func readTable[T any](ctx context.Context, path string, enc encoding.Encoding, minFields int, parse func(fields []string) (T, bool)) ([]T, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", biz.ErrMissingInput, path)
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var src io.Reader = f
	if enc != nil {
		src = enc.NewDecoder().Reader(f)
	}
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		rows    []T
		skipped int
		line    int
	)
	for sc.Scan() {
		line++
		if line%cancelCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
		}
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, FieldSeparator)
		if len(fields) < minFields {
			return nil, 0, fmt.Errorf("%w: %s:%d has %d fields, want at least %d",
				biz.ErrSchemaMismatch, path, line, len(fields), minFields)
		}
		row, ok := parse(fields)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, skipped, nil
}

const cancelCheckLines = 1 << 16

func atoi(s string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	return v, err == nil
}

// parseRating reads UserID::MovieID::Rating::Timestamp. A malformed timestamp
// keeps the rating with biz.NoTimestamp.
func parseRating(f []string) (biz.Rating, bool) {
	uid, ok1 := atoi(f[0])
	mid, ok2 := atoi(f[1])
	val, ok3 := atoi(f[2])
	if !ok1 || !ok2 || !ok3 {
		return biz.Rating{}, false
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(f[3]), 10, 64)
	if err != nil {
		ts = biz.NoTimestamp
	}
	return biz.Rating{UserID: uid, MovieID: mid, Rating: val, Timestamp: ts}, true
}

// parseUser reads UserID::Gender::Age::Occupation[::Zip-code]. Unparsable age
// or occupation codes become -1, which no known bucket matches.
func parseUser(f []string) (biz.User, bool) {
	uid, ok := atoi(f[0])
	if !ok {
		return biz.User{}, false
	}
	age, ok := atoi(f[2])
	if !ok {
		age = -1
	}
	occupation, ok := atoi(f[3])
	if !ok {
		occupation = -1
	}
	return biz.User{
		UserID:     uid,
		Gender:     biz.Gender(strings.TrimSpace(f[1])),
		Age:        age,
		Occupation: occupation,
	}, true
}

// parseMovie reads MovieID::Title::Genres. Any separator inside the title is
// kept as part of the title.
func parseMovie(f []string) (biz.Movie, bool) {
	mid, ok := atoi(f[0])
	if !ok {
		return biz.Movie{}, false
	}
	return biz.Movie{
		MovieID: mid,
		Title:   strings.Join(f[1:len(f)-1], FieldSeparator),
		Genres:  f[len(f)-1],
	}, true
}
