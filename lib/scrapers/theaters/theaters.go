// Package theaters implements one scraper per supported Madrid cinema.
//
// Every scraper turns a venue's public website into []records.Film for a
// requested window of calendar days. Sites differ wildly in structure, so
// each gets a bespoke extractor, but they all share the same fetch client,
// date helpers and output contract: cleaned titles, zero-padded venue-local
// timestamps, screenings deduplicated by (timestamp, location) and sorted
// ascending, no film without at least one screening.
package theaters

import (
	"context"
	"time"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/textutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/theaters")

// UpdatePeriod is how often a venue publishes new programming, which
// decides the scheduling bucket a theater falls into.
type UpdatePeriod string

const (
	UpdateWeekly  UpdatePeriod = "weekly"
	UpdateMonthly UpdatePeriod = "monthly"
)

// DateRange is an inclusive window of calendar days, venue-local.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days lists the window's calendar days at midnight, start through end.
func (r DateRange) Days() []time.Time {
	day := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, r.Start.Location())
	last := time.Date(r.End.Year(), r.End.Month(), r.End.Day(), 0, 0, 0, 0, r.End.Location())

	var days []time.Time
	for !day.After(last) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// Contains reports whether t's calendar date falls inside the window.
func (r DateRange) Contains(t time.Time) bool {
	day := t.Format(records.DateLayout)
	return day >= r.Start.Format(records.DateLayout) &&
		day <= r.End.Format(records.DateLayout)
}

type Scraper interface {
	// Key is the stable identifier used on the command line and in the
	// results database, e.g. "cine-paz".
	Key() string
	// Name is the display name recorded in the theater column.
	Name() string
	UpdatePeriod() UpdatePeriod
	FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error)
}

// All returns every supported scraper in canonical process order.
func All(client *Client) []Scraper {
	return []Scraper{
		NewDore(client),
		NewCineteca(client),
		NewCirculo(client),
		NewRenoir(client),
		NewGolem(client),
		NewSalaBerlanga(client),
		NewEmbajadores(client),
		NewCinePaz(client),
		NewVerdi(client),
		NewSalaEquis(client),
	}
}

// ByKey returns the scraper registered under key, or false. A venue's
// display name works too, compared with casing and whitespace ignored.
func ByKey(client *Client, key string) (Scraper, bool) {
	for _, s := range All(client) {
		if s.Key() == key {
			return s, true
		}
	}
	normalized := textutil.NormalizeName(key)
	for _, s := range All(client) {
		if textutil.NormalizeName(s.Name()) == normalized {
			return s, true
		}
	}
	return nil, false
}

// Keys lists the registry keys in process order.
func Keys() []string {
	var keys []string
	for _, s := range All(nil) {
		keys = append(keys, s.Key())
	}
	return keys
}

// KeysByPeriod lists the registry keys whose venue updates on the given
// period, in process order.
func KeysByPeriod(period UpdatePeriod) []string {
	var keys []string
	for _, s := range All(nil) {
		if s.UpdatePeriod() == period {
			keys = append(keys, s.Key())
		}
	}
	return keys
}

// filmFold accumulates films in first-seen order. Repeated keys keep the
// first film's identity fields and union the screenings.
type filmFold struct {
	order []string
	byKey map[string]*records.Film
}

func newFilmFold() *filmFold {
	return &filmFold{byKey: make(map[string]*records.Film)}
}

func (f *filmFold) Add(key string, film records.Film) *records.Film {
	existing, ok := f.byKey[key]
	if !ok {
		stored := records.Film{
			Theater:         film.Theater,
			Title:           film.Title,
			TheaterFilmLink: film.TheaterFilmLink,
			Director:        film.Director,
			Year:            film.Year,
		}
		for _, s := range film.Dates {
			stored.AddScreening(s)
		}
		f.order = append(f.order, key)
		f.byKey[key] = &stored
		return &stored
	}
	for _, s := range film.Dates {
		existing.AddScreening(s)
	}
	return existing
}

// Films returns the folded films in first-seen order, screenings sorted.
func (f *filmFold) Films() []records.Film {
	var films []records.Film
	for _, key := range f.order {
		film := f.byKey[key]
		film.SortDates()
		films = append(films, *film)
	}
	return films
}
