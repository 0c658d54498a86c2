package biz

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Gender code as found in users.dat.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Season of the year a rating was made in.
type Season string

const (
	SeasonSpring  Season = "Spring"
	SeasonSummer  Season = "Summer"
	SeasonAutumn  Season = "Autumn"
	SeasonWinter  Season = "Winter"
	SeasonUnknown Season = "Unknown"
)

// Seasons lists the four seasons in calendar order starting with spring.
var Seasons = []Season{SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter}

// ParseSeason resolves a season name case-insensitively.
func ParseSeason(s string) (Season, bool) {
	for _, season := range Seasons {
		if strings.EqualFold(string(season), strings.TrimSpace(s)) {
			return season, true
		}
	}
	return SeasonUnknown, false
}

// ReferenceData holds the read-only code to label tables used for display
// and for the canonical genre list. Build it with NewReferenceData; it is
// never modified afterwards and is safe to share between goroutines.
type ReferenceData struct {
	ageBrackets map[int]string
	occupations map[int]string
	genders     map[Gender]string
	genres      []string
}

// NewReferenceData returns the MovieLens 1M reference tables.
func NewReferenceData() *ReferenceData {
	return &ReferenceData{
		ageBrackets: map[int]string{
			1:  "Under 18",
			18: "18-24",
			25: "25-34",
			35: "35-44",
			45: "45-49",
			50: "50-55",
			56: "56+",
		},
		occupations: map[int]string{
			0:  "other or not specified",
			1:  "academic/educator",
			2:  "artist",
			3:  "clerical/admin",
			4:  "college/grad student",
			5:  "customer service",
			6:  "doctor/health care",
			7:  "executive/managerial",
			8:  "farmer",
			9:  "homemaker",
			10: "K-12 student",
			11: "lawyer",
			12: "programmer",
			13: "retired",
			14: "sales/marketing",
			15: "scientist",
			16: "self-employed",
			17: "technician/engineer",
			18: "tradesman/craftsman",
			19: "unemployed",
			20: "writer",
		},
		genders: map[Gender]string{
			GenderMale:   "Male",
			GenderFemale: "Female",
		},
		genres: []string{
			"Action", "Adventure", "Animation", "Children's", "Comedy", "Crime", "Documentary",
			"Drama", "Fantasy", "Film-Noir", "Horror", "Musical", "Mystery", "Romance", "Sci-Fi",
			"Thriller", "War", "Western",
		},
	}
}

// AgeLabel returns the display range of an age bucket code.
func (r *ReferenceData) AgeLabel(code int) string {
	if label, ok := r.ageBrackets[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown Age Range %d", code)
}

// OccupationLabel returns the display name of an occupation code.
func (r *ReferenceData) OccupationLabel(code int) string {
	if label, ok := r.occupations[code]; ok {
		return label
	}
	return fmt.Sprintf("Unknown Occupation %d", code)
}

// GenderLabel returns the display name of a gender code.
func (r *ReferenceData) GenderLabel(g Gender) string {
	if label, ok := r.genders[g]; ok {
		return label
	}
	return fmt.Sprintf("Unknown Gender %s", g)
}

// SeasonLabel returns the display name of a season.
func (r *ReferenceData) SeasonLabel(s Season) string {
	if slices.Contains(Seasons, s) {
		return string(s)
	}
	return fmt.Sprintf("Unknown Season %s", s)
}

// Genres returns a copy of the canonical genre list.
func (r *ReferenceData) Genres() []string {
	return slices.Clone(r.genres)
}

// AgeBuckets returns the known age bucket codes in ascending order.
func (r *ReferenceData) AgeBuckets() []int {
	return slices.Sorted(maps.Keys(r.ageBrackets))
}
