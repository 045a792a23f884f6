package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"filmcalendar-backend/lib/records"
)

func sampleMaster() []records.MasterFilm {
	return []records.MasterFilm{
		{
			Film: records.Film{
				Theater:         "Cineteca Madrid",
				Title:           "El espíritu de la colmena",
				TheaterFilmLink: "https://www.cinetecamadrid.com/espiritu",
				Dates: []records.Screening{
					{Timestamp: "2026-03-01 19:00", Location: "Sala Azcona", UrlInfo: "https://www.cinetecamadrid.com/espiritu"},
					{Timestamp: "2026-03-10 20:30", Location: "Sala Azcona", UrlInfo: "https://www.cinetecamadrid.com/espiritu", Version: "dubbed"},
				},
				Director: "Víctor Erice",
				Year:     "1973",
			},
			LetterboxdUrl:      "https://letterboxd.com/film/the-spirit-of-the-beehive/",
			LetterboxdRating:   4.2,
			LetterboxdViewers:  152000,
			LetterboxdShortUrl: "https://boxd.it/2a9q",
			TmdbUrl:            "https://www.themoviedb.org/movie/42258/",
			Genres:             []string{"Drama"},
			Country:            "Spain",
			PrimaryLanguage:    "Spanish",
			SpokenLanguages:    []string{"Spanish"},
			RuntimeMinutes:     97,
			TitleOriginal:      "El espíritu de la colmena",
			TitleEn:            "The Spirit of the Beehive",
			TitleEs:            "El espíritu de la colmena",
		},
		{
			Film: records.Film{
				Theater:         "Sala Equis",
				Title:           "Teorema",
				TheaterFilmLink: "https://salaequis.es/ciclos/teorema/",
				Dates: []records.Screening{
					{Timestamp: "2026-03-04 20:00", Location: "Sala Equis"},
				},
				Director: "Pier Paolo Pasolini",
			},
		},
	}
}

func TestMasterCsvRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.csv")
	films := sampleMaster()

	require.NoError(t, WriteMaster(path, films))

	loaded, err := ReadMaster(path)
	require.NoError(t, err)
	require.Equal(t, films, loaded)
}

func TestReadMasterLegacyColumns(t *testing.T) {
	// a file from the old pipeline: python-literal dates and list
	// columns, float-typed year and viewers, no tmdb columns
	legacy := "theater,title,theater_film_link,dates,director,year,letterboxd_url,letterboxd_rating,letterboxd_viewers,genres\n" +
		`Cine Doré,Arrebato,https://entradasfilmoteca.gob.es/arrebato,"[{'timestamp': '2026-03-10 18:00', 'location': 'Cine Doré', 'url_tickets': '', 'url_info': ''}]",Iván Zulueta,1979.0,https://letterboxd.com/film/rapture/,4.1,36000.0,"['Drama', 'Horror']"` + "\n"

	path := filepath.Join(t.TempDir(), "master.csv")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

	films, err := ReadMaster(path)
	require.NoError(t, err)
	require.Len(t, films, 1)
	require.Equal(t, "1979", films[0].Year)
	require.Equal(t, 36000, films[0].LetterboxdViewers)
	require.Equal(t, 4.1, films[0].LetterboxdRating)
	require.Equal(t, []string{"Drama", "Horror"}, films[0].Genres)
	require.Equal(t, []records.Screening{
		{Timestamp: "2026-03-10 18:00", Location: "Cine Doré"},
	}, films[0].Dates)
	require.Empty(t, films[0].TmdbUrl)
}

func TestReadMasterUndecodableDates(t *testing.T) {
	bad := "theater,title,theater_film_link,dates\n" +
		"Cine Doré,Arrebato,https://example.org/a,not a dates column\n"

	path := filepath.Join(t.TempDir(), "master.csv")
	require.NoError(t, os.WriteFile(path, []byte(bad), 0600))

	_, err := ReadMaster(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "row 2")
}

func TestReadMasterMissingFile(t *testing.T) {
	_, err := ReadMaster(filepath.Join(t.TempDir(), "master.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteMasterAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale content"), 0600))

	require.NoError(t, WriteMaster(path, sampleMaster()))

	loaded, err := ReadMaster(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "master.csv", entries[0].Name())
}

func TestSortByRating(t *testing.T) {
	films := []records.MasterFilm{
		{Film: records.Film{Title: "unrated"}},
		{Film: records.Film{Title: "good"}, LetterboxdRating: 4.2},
		{Film: records.Film{Title: "best"}, LetterboxdRating: 4.6},
		{Film: records.Film{Title: "also unrated"}},
	}

	SortByRating(films)

	titles := make([]string, len(films))
	for i, f := range films {
		titles[i] = f.Title
	}
	require.Equal(t, []string{"best", "good", "unrated", "also unrated"}, titles)
}

func TestWriteExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenings.json")
	require.NoError(t, WriteExport(path, sampleMaster()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"title": "Teorema"`)
	require.Contains(t, string(raw), `"timestamp": "2026-03-04 20:00"`)

	require.NoError(t, WriteExport(path, nil))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(raw))
}
