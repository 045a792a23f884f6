// Package tmdb reads film metadata from the TMDB v3 API: genres,
// countries, languages, runtime and title translations. Like the
// letterboxd lookup it only ever fills fields that are empty.
package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("filmcal/tmdb")

const apiBase = "https://api.themoviedb.org/3"

// the free tier allows ~40 requests per 10 seconds
const requestDelay = 250 * time.Millisecond

var urlPattern = regexp.MustCompile(`themoviedb\.org/(movie|tv)/(\d+)`)

// ParseUrl extracts the media type ("movie" or "tv") and id from a
// themoviedb.org url.
func ParseUrl(tmdbUrl string) (string, string, bool) {
	match := urlPattern.FindStringSubmatch(tmdbUrl)
	if match == nil {
		return "", "", false
	}
	return match[1], match[2], true
}

type Client struct {
	http  *resty.Client
	sleep func(time.Duration)
}

func NewClient(token string, output restyutil.InstrumentOutput) *Client {
	client := resty.New()
	client.SetBaseURL(apiBase)
	client.SetHeader("accept", "application/json")
	client.SetTimeout(time.Second * 15)
	configureAuth(client, token)

	restyutil.InstrumentClient(client, tracer, output)

	return &Client{
		http:  client,
		sleep: time.Sleep,
	}
}

// configureAuth accepts both credential kinds the API hands out: v4 read
// access tokens are dotted JWTs sent as a bearer header, v3 keys ride
// the query string.
func configureAuth(client *resty.Client, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	if strings.Count(token, ".") == 2 {
		client.SetAuthToken(token)
		return
	}
	client.SetQueryParam("api_key", token)
}

type nameField struct {
	Name string `json:"name"`
}

type spokenLanguage struct {
	Iso639      string `json:"iso_639_1"`
	EnglishName string `json:"english_name"`
	Name        string `json:"name"`
}

type translationData struct {
	Title string `json:"title"`
	Name  string `json:"name"`
}

type translation struct {
	Lang    string          `json:"iso_639_1"`
	Country string          `json:"iso_3166_1"`
	Data    translationData `json:"data"`
}

type detailsResponse struct {
	Title               string           `json:"title"`
	Name                string           `json:"name"`
	OriginalTitle       string           `json:"original_title"`
	OriginalName        string           `json:"original_name"`
	OriginalLanguage    string           `json:"original_language"`
	Genres              []nameField      `json:"genres"`
	ProductionCountries []nameField      `json:"production_countries"`
	OriginCountry       []string         `json:"origin_country"`
	SpokenLanguages     []spokenLanguage `json:"spoken_languages"`
	Runtime             int              `json:"runtime"`
	NumberOfEpisodes    int              `json:"number_of_episodes"`
	EpisodeRunTime      []int            `json:"episode_run_time"`
	Translations        struct {
		Translations []translation `json:"translations"`
	} `json:"translations"`
}

// FilmDetails is the catalog metadata read for one film.
type FilmDetails struct {
	Genres          []string
	Country         string
	PrimaryLanguage string
	SpokenLanguages []string
	RuntimeMinutes  int
	TitleOriginal   string
	TitleEn         string
	TitleEs         string
}

// FetchDetails resolves a themoviedb.org url through the API. Details
// and translations come back in a single request.
func (c *Client) FetchDetails(ctx context.Context, tmdbUrl string) (FilmDetails, error) {
	ctx, span := tracer.Start(ctx, "client:FetchDetails")
	defer span.End()

	mediaType, id, ok := ParseUrl(tmdbUrl)
	if !ok {
		err := fmt.Errorf("unrecognized tmdb url: %s", tmdbUrl)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse tmdb url")
		return FilmDetails{}, err
	}
	span.SetAttributes(attribute.KeyValue{
		Key:   "id",
		Value: attribute.StringValue(mediaType + "/" + id),
	})

	var data detailsResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("append_to_response", "translations").
		SetResult(&data).
		Get("/" + mediaType + "/" + id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch details")
		return FilmDetails{}, err
	}
	if res.StatusCode() == 401 {
		err := fmt.Errorf("GET %s/%s: %s, check the configured tmdb credential", mediaType, id, res.Status())
		span.RecordError(err)
		span.SetStatus(codes.Error, "unauthorized")
		return FilmDetails{}, err
	}
	if !res.IsSuccess() {
		err := fmt.Errorf("GET %s/%s: %s", mediaType, id, res.Status())
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch details")
		return FilmDetails{}, err
	}

	return parseDetails(data, mediaType), nil
}

func parseDetails(data detailsResponse, mediaType string) FilmDetails {
	details := FilmDetails{
		RuntimeMinutes: parseRuntime(data, mediaType),
	}

	for _, genre := range data.Genres {
		if genre.Name != "" {
			details.Genres = append(details.Genres, genre.Name)
		}
	}

	var countries []string
	for _, country := range data.ProductionCountries {
		if country.Name != "" {
			countries = append(countries, country.Name)
		}
	}
	if len(countries) == 0 && mediaType == "tv" {
		// tv entries often only carry origin_country ISO codes
		countries = data.OriginCountry
	}
	details.Country = strings.Join(countries, ", ")

	for _, lang := range data.SpokenLanguages {
		name := lang.EnglishName
		if name == "" {
			name = lang.Name
		}
		if name == "" {
			continue
		}
		details.SpokenLanguages = append(details.SpokenLanguages, name)
		if lang.Iso639 == data.OriginalLanguage {
			details.PrimaryLanguage = name
		}
	}
	if details.PrimaryLanguage == "" {
		details.PrimaryLanguage = data.OriginalLanguage
	}

	details.TitleOriginal = data.OriginalTitle
	if mediaType == "tv" {
		details.TitleOriginal = data.OriginalName
	}

	details.TitleEn, details.TitleEs = translatedTitles(data.Translations.Translations)
	if details.TitleEn == "" {
		if data.OriginalLanguage == "en" {
			details.TitleEn = details.TitleOriginal
		} else {
			// the main title field is usually the english release title
			main := data.Title
			if main == "" {
				main = data.Name
			}
			if main != "" && main != details.TitleOriginal {
				details.TitleEn = main
			}
		}
	}

	return details
}

// parseRuntime returns minutes. Movies carry it directly, for tv it is
// the whole series estimated as episode count times the typical episode
// length, falling back to a single episode when the count is missing.
func parseRuntime(data detailsResponse, mediaType string) int {
	if mediaType == "movie" {
		if data.Runtime > 0 {
			return data.Runtime
		}
		return 0
	}

	var valid []int
	for _, minutes := range data.EpisodeRunTime {
		if minutes > 0 {
			valid = append(valid, minutes)
		}
	}
	if data.NumberOfEpisodes > 0 && len(valid) > 0 {
		total := 0
		for _, minutes := range valid {
			total += minutes
		}
		return data.NumberOfEpisodes * (total / len(valid))
	}
	if len(valid) > 0 {
		return valid[0]
	}
	return 0
}

// translatedTitles picks the first english title and the spanish one,
// preferring the ES-ES translation over latin american ones.
func translatedTitles(translations []translation) (string, string) {
	var titleEn, titleEs, titleEsAny string
	for _, t := range translations {
		title := t.Data.Title
		if title == "" {
			title = t.Data.Name
		}
		if title == "" {
			continue
		}
		switch t.Lang {
		case "en":
			if titleEn == "" {
				titleEn = title
			}
		case "es":
			if t.Country == "ES" && titleEs == "" {
				titleEs = title
			}
			if titleEsAny == "" {
				titleEsAny = title
			}
		}
	}
	if titleEs == "" {
		titleEs = titleEsAny
	}
	return titleEn, titleEs
}

// Enrich fills catalog metadata on films that carry a tmdb url and are
// missing any of it. Fields already set are never overwritten, failed
// fetches are logged and skipped. Stops early only when ctx is
// cancelled.
func (c *Client) Enrich(ctx context.Context, films []records.MasterFilm) ([]records.MasterFilm, error) {
	ctx, span := tracer.Start(ctx, "client:Enrich")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "films",
		Value: attribute.IntValue(len(films)),
	})

	out := append([]records.MasterFilm(nil), films...)
	for i := range out {
		film := &out[i]
		if film.TmdbUrl == "" || !needsDetails(*film) {
			continue
		}

		details, err := c.FetchDetails(ctx, film.TmdbUrl)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.WarnContext(ctx, "tmdb: details fetch failed", "title", film.Title, "url", film.TmdbUrl, "err", err)
			continue
		}

		if len(film.Genres) == 0 {
			film.Genres = details.Genres
		}
		if film.Country == "" {
			film.Country = details.Country
		}
		if film.PrimaryLanguage == "" {
			film.PrimaryLanguage = details.PrimaryLanguage
		}
		if len(film.SpokenLanguages) == 0 {
			film.SpokenLanguages = details.SpokenLanguages
		}
		if film.RuntimeMinutes == 0 {
			film.RuntimeMinutes = details.RuntimeMinutes
		}
		if film.TitleOriginal == "" {
			film.TitleOriginal = details.TitleOriginal
		}
		if film.TitleEn == "" {
			film.TitleEn = details.TitleEn
		}
		if film.TitleEs == "" {
			film.TitleEs = details.TitleEs
		}

		slog.InfoContext(ctx, "tmdb: enriched film", "title", film.Title,
			"runtime", strconv.Itoa(film.RuntimeMinutes)+"m", "genres", strings.Join(film.Genres, ", "))
		c.sleep(requestDelay)
	}
	return out, nil
}

func needsDetails(film records.MasterFilm) bool {
	return len(film.Genres) == 0 || film.Country == "" || film.PrimaryLanguage == "" ||
		len(film.SpokenLanguages) == 0 || film.RuntimeMinutes == 0 ||
		film.TitleOriginal == "" || film.TitleEn == "" || film.TitleEs == ""
}
