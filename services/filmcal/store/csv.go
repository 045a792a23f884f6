// Package store persists the pipeline's film sets: the master CSV the
// merge step owns, the JSON export the website consumes, the per-run
// scrape results database and the website database upload.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"filmcalendar-backend/lib/records"
)

// masterColumns is the canonical write order. Reads are header-driven so
// files from older runs with fewer columns still load.
var masterColumns = []string{
	"theater",
	"title",
	"theater_film_link",
	"dates",
	"director",
	"year",
	"letterboxd_url",
	"letterboxd_rating",
	"letterboxd_viewers",
	"letterboxd_short_url",
	"tmdb_url",
	"genres",
	"country",
	"primary_language",
	"spoken_languages",
	"runtime_minutes",
	"title_original",
	"title_en",
	"title_es",
}

// ReadMaster loads a master CSV. The dates and list-valued columns use
// the JSON-first, literal-fallback codec for compatibility with files
// written by older runs. A missing file is the caller's decision:
// os.ErrNotExist passes through.
func ReadMaster(path string) ([]records.MasterFilm, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}
	cell := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var films []records.MasterFilm
	for n, row := range rows[1:] {
		dates, err := records.DecodeDates(cell(row, "dates"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}
		genres, err := records.DecodeStrings(cell(row, "genres"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}
		spoken, err := records.DecodeStrings(cell(row, "spoken_languages"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, n+2, err)
		}

		films = append(films, records.MasterFilm{
			Film: records.Film{
				Theater:         cell(row, "theater"),
				Title:           cell(row, "title"),
				TheaterFilmLink: cell(row, "theater_film_link"),
				Dates:           dates,
				Director:        cell(row, "director"),
				Year:            numericYear(cell(row, "year")),
			},
			LetterboxdUrl:      cell(row, "letterboxd_url"),
			LetterboxdRating:   parseFloatCell(cell(row, "letterboxd_rating")),
			LetterboxdViewers:  parseIntCell(cell(row, "letterboxd_viewers")),
			LetterboxdShortUrl: cell(row, "letterboxd_short_url"),
			TmdbUrl:            cell(row, "tmdb_url"),
			Genres:             genres,
			Country:            cell(row, "country"),
			PrimaryLanguage:    cell(row, "primary_language"),
			SpokenLanguages:    spoken,
			RuntimeMinutes:     parseIntCell(cell(row, "runtime_minutes")),
			TitleOriginal:      cell(row, "title_original"),
			TitleEn:            cell(row, "title_en"),
			TitleEs:            cell(row, "title_es"),
		})
	}
	return films, nil
}

// WriteMaster persists the master set atomically: the rows go to a temp
// file in the target directory which replaces the target via rename, so
// a crash mid-write never truncates the previous master.
func WriteMaster(path string, films []records.MasterFilm) error {
	return writeAtomic(path, "master-*.csv", func(f *os.File) error {
		writer := csv.NewWriter(f)
		if err := writer.Write(masterColumns); err != nil {
			return err
		}
		for _, film := range films {
			row := []string{
				film.Theater,
				film.Title,
				film.TheaterFilmLink,
				records.EncodeDates(film.Dates),
				film.Director,
				film.Year,
				film.LetterboxdUrl,
				formatFloatCell(film.LetterboxdRating),
				formatIntCell(film.LetterboxdViewers),
				film.LetterboxdShortUrl,
				film.TmdbUrl,
				records.EncodeStrings(film.Genres),
				film.Country,
				film.PrimaryLanguage,
				records.EncodeStrings(film.SpokenLanguages),
				formatIntCell(film.RuntimeMinutes),
				film.TitleOriginal,
				film.TitleEn,
				film.TitleEs,
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// SortByRating orders films best-rated first, the order the published
// outputs use. Unrated films keep their relative order at the end.
func SortByRating(films []records.MasterFilm) {
	sort.SliceStable(films, func(i, j int) bool {
		return films[i].LetterboxdRating > films[j].LetterboxdRating
	})
}

func writeAtomic(path, pattern string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		if _, err := os.Stat(tmpPath); err == nil {
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// numericYear strips the ".0" suffix float-typed year columns from older
// runs carry.
func numericYear(raw string) string {
	raw = strings.TrimSpace(raw)
	return strings.TrimSuffix(raw, ".0")
}

// parseIntCell tolerates both integer and float renderings, older runs
// persisted counts through a float-typed column.
func parseIntCell(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func parseFloatCell(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatIntCell(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func formatFloatCell(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
