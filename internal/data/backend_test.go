package data

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"movietrends/internal/biz"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ratingsTable serves pages of an in-memory ratings table the way
// ratingsAfter queries it.
type ratingsTable struct {
	rows  []Rating
	pages []*ratingKey
}

func newRatingsTable(n int) *ratingsTable {
	rows := make([]Rating, 0, n)
	for i := range n {
		// Several ratings per user so pages split inside a user.
		rows = append(rows, Rating{UserID: i/4 + 1, MovieID: (n - i) * 10, Rating: i%5 + 1, Timestamp: int64(978300760 + i)})
	}
	slices.SortFunc(rows, func(a, b Rating) int {
		return cmp.Or(cmp.Compare(a.UserID, b.UserID), cmp.Compare(a.MovieID, b.MovieID))
	})
	return &ratingsTable{rows: rows}
}

func (t *ratingsTable) page(after *ratingKey, size int) ([]Rating, error) {
	t.pages = append(t.pages, after)
	start := 0
	if after != nil {
		start = len(t.rows)
		for i, r := range t.rows {
			if r.UserID > after.UserID || (r.UserID == after.UserID && r.MovieID > after.MovieID) {
				start = i
				break
			}
		}
	}
	end := min(start+size, len(t.rows))
	return slices.Clone(t.rows[start:end]), nil
}

func TestPageRatings(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		size      int
		wantPages int
	}{
		{"more rows than batch", 25, 10, 3},
		{"exact multiple of batch", 20, 10, 3},
		{"single short page", 7, 10, 1},
		{"empty table", 0, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := newRatingsTable(tt.rows)
			got, err := pageRatings(context.Background(), tt.size, table.page)
			if err != nil {
				t.Fatalf("pageRatings() error = %v", err)
			}
			if len(got) != tt.rows {
				t.Fatalf("loaded %d ratings, want %d", len(got), tt.rows)
			}
			for i, r := range table.rows {
				if got[i] != r.toBiz() {
					t.Fatalf("rating %d = %+v, want %+v", i, got[i], r.toBiz())
				}
			}
			if len(table.pages) != tt.wantPages {
				t.Errorf("queried %d pages, want %d", len(table.pages), tt.wantPages)
			}
			if table.pages[0] != nil {
				t.Errorf("first page started after %+v, want the start", table.pages[0])
			}
		})
	}
}

func TestPageRatingsErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := pageRatings(context.Background(), 10, func(*ratingKey, int) ([]Rating, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("pageRatings() error = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	table := newRatingsTable(25)
	if _, err := pageRatings(ctx, 10, table.page); !errors.Is(err, context.Canceled) {
		t.Errorf("pageRatings() error = %v, want context.Canceled", err)
	}
}

func TestRatingsAfterSQL(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=movietrends dbname=movielens sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}

	first := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return ratingsAfter(tx, nil, 10).Find(&[]Rating{})
	})
	if strings.Contains(first, "WHERE") {
		t.Errorf("first page has a key condition: %s", first)
	}

	next := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return ratingsAfter(tx, &ratingKey{UserID: 6040, MovieID: 1097}, 10).Find(&[]Rating{})
	})
	for _, want := range []string{`FROM "ratings"`, "(user_id, movie_id) > (6040, 1097)", "ORDER BY user_id, movie_id", "LIMIT 10"} {
		if !strings.Contains(next, want) {
			t.Errorf("query %q does not contain %q", next, want)
		}
	}
}

func newDocumentCursor(t *testing.T, docs ...any) *mongo.Cursor {
	t.Helper()
	cur, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	if err != nil {
		t.Fatalf("NewCursorFromDocuments() error = %v", err)
	}
	return cur
}

func TestDecodeAllDocuments(t *testing.T) {
	ctx := context.Background()

	ratings, err := decodeAll(ctx, newDocumentCursor(t,
		bson.D{{Key: "userId", Value: 1}, {Key: "movieId", Value: 1193}, {Key: "rating", Value: 5}, {Key: "timestamp", Value: int64(978300760)}},
		bson.D{{Key: "userId", Value: 2}, {Key: "movieId", Value: 661}, {Key: "rating", Value: 3}, {Key: "timestamp", Value: int64(978302109)}},
	), RatingsCollection, (*ratingDocument).toBiz)
	if err != nil {
		t.Fatalf("decodeAll(ratings) error = %v", err)
	}
	want := []biz.Rating{
		{UserID: 1, MovieID: 1193, Rating: 5, Timestamp: 978300760},
		{UserID: 2, MovieID: 661, Rating: 3, Timestamp: 978302109},
	}
	if !slices.Equal(ratings, want) {
		t.Errorf("ratings = %+v, want %+v", ratings, want)
	}

	users, err := decodeAll(ctx, newDocumentCursor(t,
		bson.D{{Key: "userId", Value: 1}, {Key: "gender", Value: "F"}, {Key: "age", Value: 1}, {Key: "occupation", Value: 10}},
	), UsersCollection, (*userDocument).toBiz)
	if err != nil {
		t.Fatalf("decodeAll(users) error = %v", err)
	}
	if len(users) != 1 || users[0] != (biz.User{UserID: 1, Gender: biz.GenderFemale, Age: 1, Occupation: 10}) {
		t.Errorf("users = %+v", users)
	}

	movies, err := decodeAll(ctx, newDocumentCursor(t,
		bson.D{{Key: "movieId", Value: 1}, {Key: "title", Value: "Toy Story (1995)"}, {Key: "genres", Value: bson.A{"Animation", "Comedy"}}},
	), MoviesCollection, (*movieDocument).toBiz)
	if err != nil {
		t.Fatalf("decodeAll(movies) error = %v", err)
	}
	if len(movies) != 1 || movies[0].Genres != "Animation|Comedy" || movies[0].Title != "Toy Story (1995)" {
		t.Errorf("movies = %+v", movies)
	}
}

func TestDecodeAllSchemaMismatch(t *testing.T) {
	cur := newDocumentCursor(t,
		bson.D{{Key: "userId", Value: "one"}, {Key: "movieId", Value: 1193}, {Key: "rating", Value: 5}},
	)
	if _, err := decodeAll(context.Background(), cur, RatingsCollection, (*ratingDocument).toBiz); !errors.Is(err, biz.ErrSchemaMismatch) {
		t.Errorf("decodeAll() error = %v, want ErrSchemaMismatch", err)
	}
}
