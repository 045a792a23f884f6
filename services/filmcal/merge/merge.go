// Package merge folds scraped screening records into deduplicated film
// sets. All operations are pure: they never touch I/O and never mutate
// their inputs, callers own persistence.
package merge

import (
	"filmcalendar-backend/lib/records"
)

// Films folds film lists from a single theater by canonical detail link.
// The first record seen under a link keeps the identity fields; screenings
// union under the (timestamp, location) key; director and year backfill
// only while empty. Films without a detail link group by exact title.
func Films(existing, incoming []records.Film) []records.Film {
	var order []string
	byKey := make(map[string]*records.Film)

	add := func(film records.Film) {
		key := film.TheaterFilmLink
		if key == "" {
			key = film.Title
		}
		current, ok := byKey[key]
		if !ok {
			seeded := film
			seeded.Dates = append([]records.Screening(nil), film.Dates...)
			byKey[key] = &seeded
			order = append(order, key)
			return
		}
		for _, scr := range film.Dates {
			current.AddScreening(scr)
		}
		if current.Director == "" {
			current.Director = film.Director
		}
		if current.Year == "" {
			current.Year = film.Year
		}
	}

	for _, film := range existing {
		add(film)
	}
	for _, film := range incoming {
		add(film)
	}

	out := make([]records.Film, 0, len(order))
	for _, key := range order {
		film := byKey[key]
		film.SortDates()
		out = append(out, *film)
	}
	return out
}

// masterSet indexes master films under the identity precedence of the
// master store: the external catalog url identifies a film when present,
// exact title is the fallback for records that have no catalog url yet.
// Two records with distinct catalog urls are distinct films even when
// their titles collide.
type masterSet struct {
	order     []*records.MasterFilm
	byCatalog map[string]*records.MasterFilm
	byTitle   map[string]*records.MasterFilm
}

func newMasterSet() *masterSet {
	return &masterSet{
		byCatalog: make(map[string]*records.MasterFilm),
		byTitle:   make(map[string]*records.MasterFilm),
	}
}

func (set *masterSet) find(catalogUrl, title string) *records.MasterFilm {
	if catalogUrl != "" {
		if target, ok := set.byCatalog[catalogUrl]; ok {
			return target
		}
	}
	target, ok := set.byTitle[title]
	if !ok {
		return nil
	}
	if catalogUrl != "" && target.LetterboxdUrl != "" && target.LetterboxdUrl != catalogUrl {
		return nil
	}
	return target
}

func (set *masterSet) register(target *records.MasterFilm) {
	if target.LetterboxdUrl != "" {
		if _, ok := set.byCatalog[target.LetterboxdUrl]; !ok {
			set.byCatalog[target.LetterboxdUrl] = target
		}
	}
	if target.Title != "" {
		if _, ok := set.byTitle[target.Title]; !ok {
			set.byTitle[target.Title] = target
		}
	}
}

func (set *masterSet) addMaster(film records.MasterFilm) {
	target := set.find(film.LetterboxdUrl, film.Title)
	if target == nil {
		seeded := film
		seeded.Dates = append([]records.Screening(nil), film.Dates...)
		seeded.Genres = append([]string(nil), film.Genres...)
		seeded.SpokenLanguages = append([]string(nil), film.SpokenLanguages...)
		set.order = append(set.order, &seeded)
		set.register(&seeded)
		return
	}
	for _, scr := range film.Dates {
		target.AddScreening(scr)
	}
	backfillFilm(&target.Film, film.Film)
	backfillCatalog(target, film)
	set.register(target)
}

// AsMaster wraps freshly scraped films into master records carrying no
// catalog metadata yet.
func AsMaster(films []records.Film) []records.MasterFilm {
	out := make([]records.MasterFilm, len(films))
	for i, film := range films {
		out[i] = records.MasterFilm{Film: film}
	}
	return out
}

// Master folds freshly scraped films into the persisted master set.
// Existing records keep their order; unmatched incoming films append in
// input order. Dates accumulate monotonically, scalar fields backfill
// only while empty, and disagreements keep the first-seen value. Incoming
// films with no screenings are dropped, never persisted.
func Master(existing, incoming []records.MasterFilm) []records.MasterFilm {
	set := newMasterSet()
	for _, film := range existing {
		set.addMaster(film)
	}
	for _, film := range incoming {
		if len(film.Dates) == 0 {
			continue
		}
		set.addMaster(film)
	}

	out := make([]records.MasterFilm, 0, len(set.order))
	for _, film := range set.order {
		film.SortDates()
		out = append(out, *film)
	}
	return out
}

func backfillFilm(dst *records.Film, src records.Film) {
	if dst.Theater == "" {
		dst.Theater = src.Theater
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.TheaterFilmLink == "" {
		dst.TheaterFilmLink = src.TheaterFilmLink
	}
	if dst.Director == "" {
		dst.Director = src.Director
	}
	if dst.Year == "" {
		dst.Year = src.Year
	}
}

func backfillCatalog(dst *records.MasterFilm, src records.MasterFilm) {
	if dst.LetterboxdUrl == "" {
		dst.LetterboxdUrl = src.LetterboxdUrl
	}
	if dst.LetterboxdRating == 0 {
		dst.LetterboxdRating = src.LetterboxdRating
	}
	if dst.LetterboxdViewers == 0 {
		dst.LetterboxdViewers = src.LetterboxdViewers
	}
	if dst.LetterboxdShortUrl == "" {
		dst.LetterboxdShortUrl = src.LetterboxdShortUrl
	}
	if dst.TmdbUrl == "" {
		dst.TmdbUrl = src.TmdbUrl
	}
	if len(dst.Genres) == 0 {
		dst.Genres = append([]string(nil), src.Genres...)
	}
	if dst.Country == "" {
		dst.Country = src.Country
	}
	if dst.PrimaryLanguage == "" {
		dst.PrimaryLanguage = src.PrimaryLanguage
	}
	if len(dst.SpokenLanguages) == 0 {
		dst.SpokenLanguages = append([]string(nil), src.SpokenLanguages...)
	}
	if dst.RuntimeMinutes == 0 {
		dst.RuntimeMinutes = src.RuntimeMinutes
	}
	if dst.TitleOriginal == "" {
		dst.TitleOriginal = src.TitleOriginal
	}
	if dst.TitleEn == "" {
		dst.TitleEn = src.TitleEn
	}
	if dst.TitleEs == "" {
		dst.TitleEs = src.TitleEs
	}
}
