package data

import (
	"strings"

	"movietrends/internal/biz"
)

// Rating represents the ratings table
type Rating struct {
	UserID    int   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	MovieID   int   `gorm:"column:movie_id;primaryKey;autoIncrement:false;index:idx_ratings_movie_id"`
	Rating    int   `gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Timestamp int64 `gorm:"column:timestamp;not null"`
}

// TableName overrides the table name
func (Rating) TableName() string {
	return "ratings"
}

// User represents the users table
type User struct {
	UserID     int    `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Gender     string `gorm:"not null;size:1"`
	Age        int    `gorm:"not null"`
	Occupation int    `gorm:"not null"`
	ZipCode    string `gorm:"column:zip_code;size:10"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// Movie represents the movies table
type Movie struct {
	MovieID int    `gorm:"column:movie_id;primaryKey;autoIncrement:false"`
	Title   string `gorm:"not null;size:255"`
	Genres  string `gorm:"not null;size:255"`
}

// TableName overrides the table name
func (Movie) TableName() string {
	return "movies"
}

// ratingDocument is a document of the ratings collection
type ratingDocument struct {
	UserID    int   `bson:"userId"`
	MovieID   int   `bson:"movieId"`
	Rating    int   `bson:"rating"`
	Timestamp int64 `bson:"timestamp"`
}

// userDocument is a document of the users collection
type userDocument struct {
	UserID     int    `bson:"userId"`
	Gender     string `bson:"gender"`
	Age        int    `bson:"age"`
	Occupation int    `bson:"occupation"`
}

// movieDocument is a document of the movies collection; genres are stored as
// an array rather than a delimited string.
type movieDocument struct {
	MovieID int      `bson:"movieId"`
	Title   string   `bson:"title"`
	Genres  []string `bson:"genres"`
}

func (m *Rating) toBiz() biz.Rating {
	return biz.Rating{UserID: m.UserID, MovieID: m.MovieID, Rating: m.Rating, Timestamp: m.Timestamp}
}

func (m *User) toBiz() biz.User {
	return biz.User{UserID: m.UserID, Gender: biz.Gender(m.Gender), Age: m.Age, Occupation: m.Occupation}
}

func (m *Movie) toBiz() biz.Movie {
	return biz.Movie{MovieID: m.MovieID, Title: m.Title, Genres: m.Genres}
}

func (d *ratingDocument) toBiz() biz.Rating {
	return biz.Rating{UserID: d.UserID, MovieID: d.MovieID, Rating: d.Rating, Timestamp: d.Timestamp}
}

func (d *userDocument) toBiz() biz.User {
	return biz.User{UserID: d.UserID, Gender: biz.Gender(d.Gender), Age: d.Age, Occupation: d.Occupation}
}

func (d *movieDocument) toBiz() biz.Movie {
	return biz.Movie{MovieID: d.MovieID, Title: d.Title, Genres: strings.Join(d.Genres, biz.GenreSeparator)}
}
