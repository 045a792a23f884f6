package theaters

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

type doreScraper struct {
	client  *Client
	baseUrl string
}

// NewDore scrapes Cine Doré through the Filmoteca ticketing site. The
// site's date filters are broken, so every listing page is drained and
// screenings are filtered to the window client-side. Separate product
// pages for the same film (slug and slug-ii) are merged by title,
// director and year.
func NewDore(client *Client) Scraper {
	return &doreScraper{
		client:  client,
		baseUrl: "https://entradasfilmoteca.sacatuentrada.es",
	}
}

func (s *doreScraper) Key() string                { return "dore" }
func (s *doreScraper) Name() string               { return "Cine Doré" }
func (s *doreScraper) UpdatePeriod() UpdatePeriod { return UpdateMonthly }

type doreItem struct {
	date time.Time
	film records.Film
}

func (it doreItem) foldKey() string {
	return it.film.Title + "\x00" + it.film.Director + "\x00" + it.film.Year
}

func (s *doreScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "dore:FetchFilms")
	defer span.End()

	base, err := url.Parse(s.baseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid base url")
		return nil, err
	}

	fold := newFilmFold()
	maxPages := 1
	for page := 1; page <= maxPages; page++ {
		pageUrl := fmt.Sprintf("%s/es/busqueda?pagina=%d", s.baseUrl, page)
		doc, err := s.client.Document(ctx, pageUrl)
		if err != nil {
			// keep whatever earlier pages yielded
			span.RecordError(err)
			slog.WarnContext(ctx, "dore: page fetch failed", "page", page, "err", err)
			break
		}
		if page == 1 {
			maxPages = totalPages(doc)
			slog.DebugContext(ctx, "dore: pagination", "pages", maxPages)
		}
		for _, item := range s.parsePage(doc, base) {
			if !window.Contains(item.date) {
				continue
			}
			fold.Add(item.foldKey(), item.film)
		}
	}

	films := fold.Films()
	sort.SliceStable(films, func(i, j int) bool {
		if films[i].Title != films[j].Title {
			return films[i].Title < films[j].Title
		}
		return films[i].Year < films[j].Year
	})
	return films, nil
}

var pageParam = regexp.MustCompile(`pagina=(\d+)`)

func totalPages(doc *goquery.Document) int {
	pagination := doc.Find("ul.pagination").First()
	if pagination.Length() == 0 {
		return 1
	}

	total := 0
	pagination.Find("i").EachWithBreak(func(_ int, icon *goquery.Selection) bool {
		if strings.TrimSpace(icon.Text()) != "last_page" {
			return true
		}
		if m := pageParam.FindStringSubmatch(icon.Parent().AttrOr("href", "")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				total = n
			}
		}
		return false
	})
	if total > 0 {
		return total
	}

	max := 1
	pagination.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if m := pageParam.FindStringSubmatch(a.AttrOr("href", "")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	})
	return max
}

var (
	titleYear  = regexp.MustCompile(`\(.*?(\d{4})\)`)
	titleParen = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	doreTime   = regexp.MustCompile(`(\d{1,2}:\d{2})h`)
)

// parsePage extracts one single-screening film per listing item. Items
// carry their date in a data-fecha attribute.
func (s *doreScraper) parsePage(doc *goquery.Document, base *url.URL) []doreItem {
	var items []doreItem
	doc.Find("div[data-fecha]").Each(func(_ int, sel *goquery.Selection) {
		date, err := time.ParseInLocation(records.DateLayout, sel.AttrOr("data-fecha", ""), timezone.Location)
		if err != nil {
			return
		}
		info := sel.Find("div.info").First()
		if info.Length() == 0 {
			return
		}
		rawTitle := htmlutil.CleanText(info.Find("h2.titulo").First().Text())
		if rawTitle == "" {
			return
		}

		// "Un asunto de familia (Manbiki kazoku, 2018)"
		year := ""
		if m := titleYear.FindStringSubmatch(rawTitle); m != nil {
			year = m[1]
		}
		title := strings.TrimSpace(titleParen.ReplaceAllString(rawTitle, ""))
		director := htmlutil.CleanText(info.Find("h3.subtitulo").First().Text())

		clock := ""
		if desc := info.Find("div.descripcion").First(); desc.Length() > 0 {
			if m := doreTime.FindStringSubmatch(desc.Text()); m != nil {
				clock, _ = normalizeTime(m[1])
			}
		}

		filmUrl := ""
		if a := sel.Find("a.mas-info").First(); a.Length() > 0 {
			if href := a.AttrOr("href", ""); href != "" {
				filmUrl = htmlutil.ResolveURL(base, href)
			}
		}

		timestamp := date.Format(records.DateLayout)
		if clock != "" {
			timestamp = stamp(date, clock)
		}

		items = append(items, doreItem{
			date: date,
			film: records.Film{
				Theater:         s.Name(),
				Title:           title,
				TheaterFilmLink: filmUrl,
				Director:        director,
				Year:            year,
				Dates: []records.Screening{{
					Timestamp: timestamp,
					Location:  s.Name(),
					UrlInfo:   filmUrl,
				}},
			},
		})
	})
	return items
}
