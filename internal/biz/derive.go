package biz

import (
	"iter"
	"strings"
	"time"
)

// GenreSeparator splits the Genres field of movies.dat.
const GenreSeparator = "|"

// SeasonOf maps epoch seconds to the season of its UTC month.
func SeasonOf(ts int64) Season {
	return seasonOfMonth(time.Unix(ts, 0).UTC().Month())
}

func seasonOfMonth(m time.Month) Season {
	switch m {
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	case time.September, time.October, time.November:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}

// seasonColumn derives the Season column of a joined record.
func seasonColumn(ts int64) Season {
	if ts == NoTimestamp {
		return SeasonUnknown
	}
	return SeasonOf(ts)
}

// ExplodeGenres yields every genre token of a pipe-delimited genres field.
// The sequence can be ranged over any number of times.
func ExplodeGenres(genres string) iter.Seq[string] {
	return strings.SplitSeq(genres, GenreSeparator)
}
