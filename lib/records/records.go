package records

import (
	"sort"
	"time"
)

// TimestampLayout is the wire form of a screening timestamp: venue-local,
// 24-hour, zero-padded. Zero padding is what makes lexicographic order
// equal chronological order.
const TimestampLayout = "2006-01-02 15:04"

const DateLayout = "2006-01-02"

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Screening is one showing of one film at one venue, one date and time.
type Screening struct {
	Timestamp  string `json:"timestamp"`
	Location   string `json:"location"`
	UrlTickets string `json:"url_tickets"`
	UrlInfo    string `json:"url_info"`
	// "dubbed" or a site-specific original-version tag. empty means no
	// special note is needed, the showing is the expected version.
	Version string `json:"version,omitempty"`
}

// Key is the dedup identity of a screening within one film.
func (s Screening) Key() string {
	return s.Timestamp + "|" + s.Location
}

// InRange reports whether the screening's calendar date falls inside
// [start, end], inclusive by date.
func (s Screening) InRange(start, end time.Time) bool {
	if len(s.Timestamp) < len(DateLayout) {
		return false
	}
	day := s.Timestamp[:len(DateLayout)]
	return day >= start.Format(DateLayout) && day <= end.Format(DateLayout)
}

// Film is one distinct film at one theater, the unit every scraper emits.
type Film struct {
	Theater         string      `json:"theater"`
	Title           string      `json:"title"`
	TheaterFilmLink string      `json:"theater_film_link"`
	Dates           []Screening `json:"dates"`
	Director        string      `json:"director,omitempty"`
	Year            string      `json:"year,omitempty"`
}

// AddScreening appends a screening unless its (timestamp, location) key is
// already present. Reports whether the screening was added.
func (f *Film) AddScreening(s Screening) bool {
	key := s.Key()
	for _, existing := range f.Dates {
		if existing.Key() == key {
			return false
		}
	}
	f.Dates = append(f.Dates, s)
	return true
}

// SortDates orders the screening list ascending by timestamp.
func (f *Film) SortDates() {
	sort.SliceStable(f.Dates, func(i, j int) bool {
		if f.Dates[i].Timestamp != f.Dates[j].Timestamp {
			return f.Dates[i].Timestamp < f.Dates[j].Timestamp
		}
		return f.Dates[i].Location < f.Dates[j].Location
	})
}

// FilterDates drops screenings outside [start, end].
func (f *Film) FilterDates(start, end time.Time) {
	kept := f.Dates[:0]
	for _, s := range f.Dates {
		if s.InRange(start, end) {
			kept = append(kept, s)
		}
	}
	f.Dates = kept
}

// MasterFilm is the persisted cross-theater, cross-run aggregate. Its dates
// list can mix locations from different venues.
type MasterFilm struct {
	Film
	LetterboxdUrl      string   `json:"letterboxd_url,omitempty"`
	LetterboxdRating   float64  `json:"letterboxd_rating,omitempty"`
	LetterboxdViewers  int      `json:"letterboxd_viewers,omitempty"`
	LetterboxdShortUrl string   `json:"letterboxd_short_url,omitempty"`
	TmdbUrl            string   `json:"tmdb_url,omitempty"`
	Genres             []string `json:"genres,omitempty"`
	Country            string   `json:"country,omitempty"`
	PrimaryLanguage    string   `json:"primary_language,omitempty"`
	SpokenLanguages    []string `json:"spoken_languages,omitempty"`
	RuntimeMinutes     int      `json:"runtime_minutes,omitempty"`
	TitleOriginal      string   `json:"title_original,omitempty"`
	TitleEn            string   `json:"title_en,omitempty"`
	TitleEs            string   `json:"title_es,omitempty"`
}
