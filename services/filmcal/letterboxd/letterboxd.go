// Package letterboxd resolves scraped films against the letterboxd
// catalog and reads their public aggregate stats. It only ever fills
// fields that are empty, scraped data and earlier lookups always win.
package letterboxd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/restyutil"
	"filmcalendar-backend/lib/textutil"
	"filmcalendar-backend/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("filmcal/letterboxd")

const baseUrl = "https://letterboxd.com"

const FILM_PAGE_LIFETIME = int64((time.Hour / time.Second) * 24 * 30)

const requestDelay = 500 * time.Millisecond

// minTitleSimilarity is the JaroWinkler floor for accepting a bare-title
// search hit.
const minTitleSimilarity = 0.8

var (
	ratingPattern  = regexp.MustCompile(`([\d.]+)\s+out\s+of`)
	watchesPattern = regexp.MustCompile(`Watched by ([\d,]+)`)
)

// Client fetches letterboxd through the same cloudflare bypass transport
// the theater scrapers use. Film pages are additionally cached on disk,
// catalog metadata barely moves between runs. Search pages are not, new
// releases shift their results.
type Client struct {
	http  *resty.Client
	base  string
	cache pageCache
	found map[string]foundFilm
	sleep func(time.Duration)
}

// foundFilm memoizes successful lookups for the lifetime of the client,
// the same film showing up under several theaters is only searched once.
type foundFilm struct {
	url  string
	year string
}

type ClientOptions struct {
	// optional badger db backing the film page cache, nil disables it
	Cache *badger.DB
}

func NewClient(output restyutil.InstrumentOutput, opts ClientOptions) *Client {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, tracer, output)

	return &Client{
		http:  client,
		base:  baseUrl,
		cache: pageCache{db: opts.Cache},
		found: make(map[string]foundFilm),
		sleep: time.Sleep,
	}
}

func (c *Client) fetch(ctx context.Context, pageUrl string) ([]byte, error) {
	res, err := c.http.R().SetContext(ctx).Get(pageUrl)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("GET %s: %s", pageUrl, res.Status())
	}
	return res.Body(), nil
}

func (c *Client) fetchCached(ctx context.Context, pageUrl string) ([]byte, error) {
	cached, err := c.cache.get(ctx, pageUrl)
	if err == nil {
		return cached.Contents, nil
	}
	if err != errPageNotFound {
		slog.WarnContext(ctx, "letterboxd: page cache read failed", "url", pageUrl, "err", err)
	}

	body, err := c.fetch(ctx, pageUrl)
	if err != nil {
		return nil, err
	}

	err = c.cache.set(ctx, pageUrl, page{
		Contents:  body,
		ExpiresAt: timezone.Now().Unix() + FILM_PAGE_LIFETIME,
	})
	if err != nil {
		slog.WarnContext(ctx, "letterboxd: page cache write failed", "url", pageUrl, "err", err)
	}
	return body, nil
}

type searchStrategy struct {
	filter string
	verify bool
}

// searchStrategies orders lookups from most to least specific: a year
// filter when the year is known, one search per credited director, then
// the bare title. Only the bare title needs its hit verified, the
// filters already constrain the results.
func searchStrategies(year, director string) []searchStrategy {
	var strategies []searchStrategy
	if filter := yearFilter(year); filter != "" {
		strategies = append(strategies, searchStrategy{filter: filter})
	}
	for _, name := range strings.Split(director, ",") {
		if slug := textutil.Slugify(name); slug != "" {
			strategies = append(strategies, searchStrategy{filter: "director:" + slug})
		}
	}
	return append(strategies, searchStrategy{verify: true})
}

// yearFilter accepts float-typed year columns from older runs ("1979.0").
func yearFilter(year string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(year), 64)
	if err != nil {
		return ""
	}
	return "year:" + strconv.Itoa(int(f))
}

// searchQuery strips characters the search endpoint chokes on. Dots read
// as word separators in scraped titles, slashes are dropped outright.
func searchQuery(title, filter string) string {
	query := strings.ReplaceAll(title, ".", " ")
	query = strings.ReplaceAll(query, "/", "")
	query = strings.Join(strings.Fields(query), " ")
	if filter != "" {
		query = filter + " " + query
	}
	return query
}

func titlesResemble(want, got string) bool {
	w := textutil.Slugify(want)
	g := textutil.Slugify(got)
	if w == "" || g == "" {
		return false
	}
	if strings.Contains(w, g) || strings.Contains(g, w) {
		return true
	}
	return matchr.JaroWinkler(w, g, false) >= minTitleSimilarity
}

type searchResult struct {
	Url   string
	Title string
	Year  string
}

func (c *Client) searchFilms(ctx context.Context, query string) (searchResult, error) {
	body, err := c.fetch(ctx, c.base+"/search/films/"+url.PathEscape(query))
	if err != nil {
		return searchResult{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return searchResult{}, err
	}

	wrapper := doc.Find("span.film-title-wrapper").First()
	if wrapper.Length() == 0 {
		return searchResult{}, nil
	}
	anchor := wrapper.Find("a").First()
	href, _ := anchor.Attr("href")
	if href == "" {
		return searchResult{}, nil
	}

	// the result anchor nests the year inside a <small>, strip it so the
	// anchor text is just the title
	title := anchor.Clone()
	title.Find("small").Remove()

	result := searchResult{
		Url:   c.absoluteUrl(href),
		Title: strings.TrimSpace(title.Text()),
	}
	wrapper.Find("small.metadata").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if allDigits(text) {
			result.Year = text
			return false
		}
		return true
	})
	return result, nil
}

func (c *Client) absoluteUrl(href string) string {
	base, err := url.Parse(c.base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FindFilm resolves a scraped film to its catalog page url. The second
// return is the catalog's year for the hit, "" when the result row
// doesn't carry one. A film that matches nothing returns "" with a nil
// error, failed searches are logged and the next strategy tried.
func (c *Client) FindFilm(ctx context.Context, title, year, director string) (string, string, error) {
	ctx, span := tracer.Start(ctx, "client:FindFilm")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "title",
		Value: attribute.StringValue(title),
	})

	lookupKey := title + "|" + year + "|" + director
	if hit, ok := c.found[lookupKey]; ok {
		span.SetStatus(codes.Ok, "LOOKUP HIT")
		return hit.url, hit.year, nil
	}

	for _, strategy := range searchStrategies(year, director) {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup cancelled")
			return "", "", err
		}

		result, err := c.searchFilms(ctx, searchQuery(title, strategy.filter))
		if err != nil {
			slog.WarnContext(ctx, "letterboxd: search failed", "title", title, "filter", strategy.filter, "err", err)
			continue
		}
		if result.Url == "" {
			continue
		}
		if strategy.verify && !titlesResemble(title, result.Title) {
			slog.DebugContext(ctx, "letterboxd: rejecting dissimilar hit", "title", title, "hit", result.Title)
			continue
		}
		c.found[lookupKey] = foundFilm{url: result.Url, year: result.Year}
		return result.Url, result.Year, nil
	}
	return "", "", nil
}

// FilmInfo is the public aggregate metadata read off a film page.
type FilmInfo struct {
	Rating   float64
	Viewers  int
	ShortUrl string
	TmdbUrl  string
}

// FilmInfo reads rating, watch count, boxd.it short url and the tmdb
// cross-reference from filmUrl. Fields the page doesn't carry come back
// zero, only fetch and parse failures are errors.
func (c *Client) FilmInfo(ctx context.Context, filmUrl string) (FilmInfo, error) {
	ctx, span := tracer.Start(ctx, "client:FilmInfo")
	defer span.End()

	filmUrl = strings.TrimRight(filmUrl, "/") + "/"
	body, err := c.fetchCached(ctx, filmUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch film page")
		return FilmInfo{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return FilmInfo{}, err
	}

	info := FilmInfo{
		Rating:  parseRating(doc),
		Viewers: parseViewers(doc),
		TmdbUrl: parseTmdbUrl(doc),
	}
	info.ShortUrl, _ = doc.Find("input[id*='url-field-film-']").First().Attr("value")
	return info, nil
}

func parseRating(doc *goquery.Document) float64 {
	content, ok := doc.Find(`meta[name="twitter:data2"]`).First().Attr("content")
	if ok {
		if match := ratingPattern.FindStringSubmatch(content); match != nil {
			if rating, err := strconv.ParseFloat(match[1], 64); err == nil {
				return rating
			}
		}
	}

	// older page variants only carry the rating as link text
	text := strings.TrimSpace(doc.Find("a.display-rating").First().Text())
	if text == "" {
		return 0
	}
	rating, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return rating
}

func parseViewers(doc *goquery.Document) int {
	label, ok := doc.Find("div.production-statistic.-watches").First().Attr("aria-label")
	if !ok {
		return 0
	}
	// the label pads its count with non-breaking spaces
	label = strings.ReplaceAll(label, " ", " ")
	match := watchesPattern.FindStringSubmatch(label)
	if match == nil {
		return 0
	}
	viewers, err := strconv.Atoi(strings.ReplaceAll(match[1], ",", ""))
	if err != nil {
		return 0
	}
	return viewers
}

func parseTmdbUrl(doc *goquery.Document) string {
	body := doc.Find("body").First()
	id, _ := body.Attr("data-tmdb-id")
	if id == "" {
		return ""
	}
	kind, _ := body.Attr("data-tmdb-type")
	if kind == "" {
		kind = "movie"
	}
	return fmt.Sprintf("https://www.themoviedb.org/%s/%s/", kind, id)
}

// Rate fills catalog fields on films that are missing them: films without
// a letterboxd url get looked up first, films with one but without stats
// get their page read. Fields already set are never overwritten and a
// film that matches nothing comes back untouched. Stops early only when
// ctx is cancelled.
func (c *Client) Rate(ctx context.Context, films []records.MasterFilm) ([]records.MasterFilm, error) {
	ctx, span := tracer.Start(ctx, "client:Rate")
	defer span.End()
	span.SetAttributes(attribute.KeyValue{
		Key:   "films",
		Value: attribute.IntValue(len(films)),
	})

	out := append([]records.MasterFilm(nil), films...)
	for i := range out {
		film := &out[i]

		needsInfo := film.LetterboxdRating == 0 || film.LetterboxdViewers == 0 ||
			film.LetterboxdShortUrl == "" || film.TmdbUrl == ""
		if film.LetterboxdUrl != "" && !needsInfo {
			continue
		}

		if film.LetterboxdUrl == "" {
			found, foundYear, err := c.FindFilm(ctx, film.Title, film.Year, film.Director)
			if err != nil {
				return out, err
			}
			if found == "" {
				slog.InfoContext(ctx, "letterboxd: no match", "title", film.Title, "year", film.Year)
				continue
			}
			film.LetterboxdUrl = found
			if film.Year == "" && foundYear != "" {
				film.Year = foundYear
			}
			slog.InfoContext(ctx, "letterboxd: matched film", "title", film.Title, "url", found)
			c.sleep(requestDelay)
		}

		if needsInfo {
			info, err := c.FilmInfo(ctx, film.LetterboxdUrl)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				slog.WarnContext(ctx, "letterboxd: film page failed", "url", film.LetterboxdUrl, "err", err)
				continue
			}
			if film.LetterboxdRating == 0 {
				film.LetterboxdRating = info.Rating
			}
			if film.LetterboxdViewers == 0 {
				film.LetterboxdViewers = info.Viewers
			}
			if film.LetterboxdShortUrl == "" {
				film.LetterboxdShortUrl = info.ShortUrl
			}
			if film.TmdbUrl == "" {
				film.TmdbUrl = info.TmdbUrl
			}
			c.sleep(requestDelay)
		}
	}
	return out, nil
}
