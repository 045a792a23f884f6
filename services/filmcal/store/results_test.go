package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"filmcalendar-backend/lib/records"
)

func TestResultsSaveAndRead(t *testing.T) {
	results, err := OpenResults(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer results.Close()

	ctx := context.Background()
	scrapedAt := time.Date(2026, time.March, 5, 8, 0, 0, 0, time.UTC)

	films := []records.Film{
		{
			Theater:         "Cine Doré",
			Title:           "Arrebato",
			TheaterFilmLink: "https://entradasfilmoteca.gob.es/arrebato",
			Director:        "Iván Zulueta",
			Year:            "1979",
			Dates: []records.Screening{
				{Timestamp: "2026-03-10 18:00", Location: "Cine Doré", UrlInfo: "https://entradasfilmoteca.gob.es/arrebato"},
			},
		},
		{
			Theater:         "Cine Doré",
			Title:           "El verdugo",
			TheaterFilmLink: "https://entradasfilmoteca.gob.es/verdugo",
			Dates: []records.Screening{
				{Timestamp: "2026-03-11 19:00", Location: "Cine Doré"},
				{Timestamp: "2026-03-12 17:30", Location: "Cine Doré", Version: "dubbed"},
			},
		},
	}

	require.NoError(t, results.SaveRun(ctx, "dore", "Cine Doré", scrapedAt, films))

	loaded, err := results.Films(ctx, "dore")
	require.NoError(t, err)
	require.Equal(t, films, loaded)
}

func TestResultsTheatersOldestFirst(t *testing.T) {
	results, err := OpenResults(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer results.Close()

	ctx := context.Background()
	monday := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	film := []records.Film{
		{Theater: "Cines Verdi", Title: "As bestas", TheaterFilmLink: "https://example.org/bestas",
			Dates: []records.Screening{{Timestamp: "2026-03-04 20:00", Location: "Sala 1"}}},
	}
	require.NoError(t, results.SaveRun(ctx, "verdi", "Cines Verdi", monday.Add(time.Hour), film))
	require.NoError(t, results.SaveRun(ctx, "dore", "Cine Doré", monday, film))

	runs, err := results.Theaters(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "dore", runs[0].Key)
	require.Equal(t, "Cine Doré", runs[0].Name)
	require.Equal(t, "verdi", runs[1].Key)
	require.WithinDuration(t, monday, runs[0].ScrapedAt, 0)
	require.WithinDuration(t, monday.Add(time.Hour), runs[1].ScrapedAt, 0)
}

func TestResultsSaveReplacesPreviousRun(t *testing.T) {
	results, err := OpenResults(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer results.Close()

	ctx := context.Background()
	now := time.Now()

	first := []records.Film{
		{Theater: "Cines Verdi", Title: "As bestas", TheaterFilmLink: "https://example.org/bestas",
			Dates: []records.Screening{{Timestamp: "2026-03-05 20:10", Location: "Cines Verdi"}}},
		{Theater: "Cines Verdi", Title: "Vidas pasadas", TheaterFilmLink: "https://example.org/vidas",
			Dates: []records.Screening{{Timestamp: "2026-03-05 18:00", Location: "Cines Verdi"}}},
	}
	require.NoError(t, results.SaveRun(ctx, "verdi", "Cines Verdi", now, first))

	second := first[:1]
	require.NoError(t, results.SaveRun(ctx, "verdi", "Cines Verdi", now, second))

	loaded, err := results.Films(ctx, "verdi")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "As bestas", loaded[0].Title)
}

func TestResultsUnknownTheater(t *testing.T) {
	results, err := OpenResults(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	defer results.Close()

	_, err = results.Films(context.Background(), "no-such-theater")
	require.Error(t, err)
}
