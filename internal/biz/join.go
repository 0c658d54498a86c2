package biz

import "fmt"

// JoinStats counts the ratings an inner join left out.
type JoinStats struct {
	Ratings      int
	Joined       int
	UnknownUser  int
	UnknownMovie int
}

// BuildJoined inner-joins ratings with users on UserID and the result with
// movies on MovieID. Ratings without a matching user or movie are dropped.
// A user or movie key present twice in its table is a configuration error.
func BuildJoined(ds *Dataset) ([]JoinedRecord, JoinStats, error) {
	stats := JoinStats{Ratings: len(ds.Ratings)}

	users, err := userIndex(ds.Users)
	if err != nil {
		return nil, stats, err
	}
	movies, err := movieIndex(ds.Movies)
	if err != nil {
		return nil, stats, err
	}

	joined := make([]JoinedRecord, 0, len(ds.Ratings))
	for _, r := range ds.Ratings {
		u, ok := users[r.UserID]
		if !ok {
			stats.UnknownUser++
			continue
		}
		m, ok := movies[r.MovieID]
		if !ok {
			stats.UnknownMovie++
			continue
		}
		joined = append(joined, JoinedRecord{
			UserID:     r.UserID,
			MovieID:    r.MovieID,
			Rating:     r.Rating,
			Timestamp:  r.Timestamp,
			Gender:     u.Gender,
			Age:        u.Age,
			Occupation: u.Occupation,
			Title:      m.Title,
			Genres:     m.Genres,
			Season:     seasonColumn(r.Timestamp),
		})
	}
	stats.Joined = len(joined)
	return joined, stats, nil
}

func userIndex(users []User) (map[int]*User, error) {
	idx := make(map[int]*User, len(users))
	for i := range users {
		if _, dup := idx[users[i].UserID]; dup {
			return nil, fmt.Errorf("%w: user %d appears more than once", ErrDuplicateKey, users[i].UserID)
		}
		idx[users[i].UserID] = &users[i]
	}
	return idx, nil
}

func movieIndex(movies []Movie) (map[int]*Movie, error) {
	idx := make(map[int]*Movie, len(movies))
	for i := range movies {
		if _, dup := idx[movies[i].MovieID]; dup {
			return nil, fmt.Errorf("%w: movie %d appears more than once", ErrDuplicateKey, movies[i].MovieID)
		}
		idx[movies[i].MovieID] = &movies[i]
	}
	return idx, nil
}
