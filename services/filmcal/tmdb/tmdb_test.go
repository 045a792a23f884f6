package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"filmcalendar-backend/lib/records"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func newTestTmdbClient(base, token string) *Client {
	client := resty.New()
	client.SetBaseURL(base)
	client.SetHeader("accept", "application/json")
	configureAuth(client, token)
	return &Client{
		http:  client,
		sleep: func(time.Duration) {},
	}
}

// the ES-MX translation comes first so the test proves ES-ES still wins
const movieDetailsJson = `{
  "id": 429,
  "title": "The Good, the Bad and the Ugly",
  "original_title": "Il buono, il brutto, il cattivo",
  "original_language": "it",
  "genres": [{"id": 37, "name": "Western"}],
  "production_countries": [
    {"iso_3166_1": "IT", "name": "Italy"},
    {"iso_3166_1": "ES", "name": "Spain"}
  ],
  "spoken_languages": [
    {"english_name": "Italian", "iso_639_1": "it", "name": "Italiano"}
  ],
  "runtime": 161,
  "translations": {"translations": [
    {"iso_639_1": "es", "iso_3166_1": "MX", "data": {"title": "El bueno, el malo y el feo"}},
    {"iso_639_1": "es", "iso_3166_1": "ES", "data": {"title": "El bueno, el feo y el malo"}},
    {"iso_639_1": "en", "iso_3166_1": "US", "data": {"title": "The Good, the Bad and the Ugly"}}
  ]}
}`

const tvDetailsJson = `{
  "id": 248664,
  "name": "Samuel",
  "original_name": "Samuel",
  "original_language": "fr",
  "genres": [{"name": "Animation"}, {"name": "Comedy"}, {"name": "Drama"}],
  "production_countries": [],
  "origin_country": ["FR", "ES"],
  "number_of_episodes": 42,
  "episode_run_time": [7],
  "spoken_languages": [
    {"english_name": "French", "iso_639_1": "fr", "name": "Français"}
  ],
  "translations": {"translations": [
    {"iso_639_1": "en", "iso_3166_1": "US", "data": {"name": "Samuel"}}
  ]}
}`

func TestParseUrl(t *testing.T) {
	mediaType, id, ok := ParseUrl("https://www.themoviedb.org/movie/429/")
	require.True(t, ok)
	require.Equal(t, "movie", mediaType)
	require.Equal(t, "429", id)

	mediaType, id, ok = ParseUrl("https://www.themoviedb.org/tv/248664")
	require.True(t, ok)
	require.Equal(t, "tv", mediaType)
	require.Equal(t, "248664", id)

	_, _, ok = ParseUrl("https://www.themoviedb.org/movie/28/something")
	require.True(t, ok)

	_, _, ok = ParseUrl("")
	require.False(t, ok)
	_, _, ok = ParseUrl("https://letterboxd.com/film/ikiru/")
	require.False(t, ok)
}

func TestFetchDetailsMovie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/movie/429", r.URL.Path)
		require.Equal(t, "translations", r.URL.Query().Get("append_to_response"))
		require.Equal(t, "v3-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, movieDetailsJson)
	}))
	defer srv.Close()

	client := newTestTmdbClient(srv.URL, "v3-key")
	details, err := client.FetchDetails(context.Background(), "https://www.themoviedb.org/movie/429/")
	require.NoError(t, err)
	require.Equal(t, FilmDetails{
		Genres:          []string{"Western"},
		Country:         "Italy, Spain",
		PrimaryLanguage: "Italian",
		SpokenLanguages: []string{"Italian"},
		RuntimeMinutes:  161,
		TitleOriginal:   "Il buono, il brutto, il cattivo",
		TitleEn:         "The Good, the Bad and the Ugly",
		TitleEs:         "El bueno, el feo y el malo",
	}, details)
}

func TestFetchDetailsTv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tv/248664", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tvDetailsJson)
	}))
	defer srv.Close()

	client := newTestTmdbClient(srv.URL, "v3-key")
	details, err := client.FetchDetails(context.Background(), "https://www.themoviedb.org/tv/248664/")
	require.NoError(t, err)
	require.Equal(t, []string{"Animation", "Comedy", "Drama"}, details.Genres)
	// no production countries, origin_country codes stand in
	require.Equal(t, "FR, ES", details.Country)
	require.Equal(t, "French", details.PrimaryLanguage)
	// 42 episodes of 7 minutes
	require.Equal(t, 294, details.RuntimeMinutes)
	require.Equal(t, "Samuel", details.TitleOriginal)
	require.Equal(t, "Samuel", details.TitleEn)
	require.Empty(t, details.TitleEs)
}

func TestFetchDetailsV4TokenSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer header.payload.signature", r.Header.Get("Authorization"))
		require.Empty(t, r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, movieDetailsJson)
	}))
	defer srv.Close()

	client := newTestTmdbClient(srv.URL, "header.payload.signature")
	_, err := client.FetchDetails(context.Background(), "https://www.themoviedb.org/movie/429/")
	require.NoError(t, err)
}

func TestFetchDetailsUnrecognizedUrl(t *testing.T) {
	client := newTestTmdbClient("http://127.0.0.1:0", "v3-key")
	_, err := client.FetchDetails(context.Background(), "https://letterboxd.com/film/ikiru/")
	require.ErrorContains(t, err, "unrecognized tmdb url")
}

func TestFetchDetailsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestTmdbClient(srv.URL, "bad-key")
	_, err := client.FetchDetails(context.Background(), "https://www.themoviedb.org/movie/429/")
	require.ErrorContains(t, err, "credential")
}

func TestParseDetailsPrimaryLanguageFallsBackToCode(t *testing.T) {
	details := parseDetails(detailsResponse{OriginalLanguage: "xx"}, "movie")
	require.Equal(t, "xx", details.PrimaryLanguage)
}

func TestParseDetailsEnglishOriginal(t *testing.T) {
	var data detailsResponse
	data.Title = "Fight Club"
	data.OriginalTitle = "Fight Club"
	data.OriginalLanguage = "en"
	data.Translations.Translations = []translation{
		{Lang: "es", Country: "ES", Data: translationData{Title: "El Club de la Lucha"}},
	}

	details := parseDetails(data, "movie")
	require.Equal(t, "Fight Club", details.TitleEn)
	require.Equal(t, "El Club de la Lucha", details.TitleEs)
}

func TestParseRuntimeTvWithoutEpisodeCount(t *testing.T) {
	details := parseDetails(detailsResponse{EpisodeRunTime: []int{55, 61}}, "tv")
	require.Equal(t, 55, details.RuntimeMinutes)
}

func TestEnrichBackfillsOnly(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, movieDetailsJson)
	}))
	defer srv.Close()

	client := newTestTmdbClient(srv.URL, "v3-key")
	films := []records.MasterFilm{
		{
			Film:    records.Film{Title: "El bueno, el feo y el malo"},
			TmdbUrl: "https://www.themoviedb.org/movie/429/",
			TitleEn: "Custom English Title",
		},
		{
			Film:            records.Film{Title: "Perfect Days"},
			TmdbUrl:         "https://www.themoviedb.org/movie/976893/",
			Genres:          []string{"Drama"},
			Country:         "Japan",
			PrimaryLanguage: "Japanese",
			SpokenLanguages: []string{"Japanese"},
			RuntimeMinutes:  125,
			TitleOriginal:   "Perfect Days",
			TitleEn:         "Perfect Days",
			TitleEs:         "Perfect Days",
		},
		{Film: records.Film{Title: "Sesión sin ficha"}},
	}

	enriched, err := client.Enrich(context.Background(), films)
	require.NoError(t, err)
	require.Len(t, enriched, 3)
	require.Equal(t, 1, requests)

	require.Equal(t, []string{"Western"}, enriched[0].Genres)
	require.Equal(t, "Italy, Spain", enriched[0].Country)
	require.Equal(t, "Italian", enriched[0].PrimaryLanguage)
	require.Equal(t, 161, enriched[0].RuntimeMinutes)
	require.Equal(t, "Il buono, il brutto, il cattivo", enriched[0].TitleOriginal)
	require.Equal(t, "El bueno, el feo y el malo", enriched[0].TitleEs)
	// a preset field is never overwritten
	require.Equal(t, "Custom English Title", enriched[0].TitleEn)

	// the complete film and the one without a tmdb url are left alone
	require.Equal(t, films[1], enriched[1])
	require.Equal(t, films[2], enriched[2])

	// inputs are never mutated
	require.Empty(t, films[0].Genres)
}
