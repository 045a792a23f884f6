package theaters

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

type cinetecaScraper struct {
	client  *Client
	baseUrl string
}

// NewCineteca scrapes Cineteca Madrid. Day listings only carry film links;
// the detail page holds the full session calendar, so a single detail fetch
// can yield sessions on days the listing query never touched. Those are
// kept, the per-run page cache makes revisits on later days free.
func NewCineteca(client *Client) Scraper {
	return &cinetecaScraper{
		client:  client,
		baseUrl: "https://www.cinetecamadrid.com",
	}
}

func (s *cinetecaScraper) Key() string                { return "cineteca" }
func (s *cinetecaScraper) Name() string               { return "Cineteca Madrid" }
func (s *cinetecaScraper) UpdatePeriod() UpdatePeriod { return UpdateMonthly }

func (s *cinetecaScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "cineteca:FetchFilms")
	defer span.End()

	base, err := url.Parse(s.baseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid base url")
		return nil, err
	}

	fold := newFilmFold()
	for _, day := range window.Days() {
		date := day.Format(records.DateLayout)
		dayUrl := fmt.Sprintf("%s/programacion?to=%s&since=%s", s.baseUrl, date, date)

		doc, err := s.client.Document(ctx, dayUrl)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "cineteca: day listing failed", "date", date, "err", err)
			continue
		}

		var filmUrls []string
		doc.Find("h2.title a[href]").Each(func(_ int, a *goquery.Selection) {
			filmUrls = append(filmUrls, htmlutil.ResolveURL(base, a.AttrOr("href", "")))
		})

		for _, filmUrl := range filmUrls {
			if _, ok := fold.byKey[filmUrl]; ok {
				continue
			}
			film, err := s.fetchFilm(ctx, filmUrl, day.Year())
			if err != nil {
				span.RecordError(err)
				slog.WarnContext(ctx, "cineteca: skipping film", "url", filmUrl, "err", err)
				continue
			}
			if len(film.Dates) == 0 {
				continue
			}
			fold.Add(filmUrl, film)
		}
	}

	return fold.Films(), nil
}

func (s *cinetecaScraper) fetchFilm(ctx context.Context, filmUrl string, year int) (records.Film, error) {
	doc, err := s.client.Document(ctx, filmUrl)
	if err != nil {
		return records.Film{}, err
	}

	details := doc.Find("div.tit-ficha").First()
	title := htmlutil.CleanText(details.Find("h2.title").First().Text())
	if title == "" {
		return records.Film{}, fmt.Errorf("no title on %s", filmUrl)
	}

	film := records.Film{
		Theater:         s.Name(),
		Title:           title,
		TheaterFilmLink: filmUrl,
		Director:        htmlutil.CleanText(details.Find(`div[class*="director"]`).First().Text()),
		Year:            htmlutil.CleanText(details.Find(`div[class*="ano-filmacion"]`).First().Text()),
	}

	tickets := ""
	if a := doc.Find(`div[class*="field--name-field-ticketing-links"] a[href]`).First(); a.Length() > 0 {
		tickets = a.AttrOr("href", "")
	}

	s.parseSessions(doc, year, tickets, &film)
	return film, nil
}

var trailingHourUnit = regexp.MustCompile(`\s*h$`)

// parseSessions walks the session calendar, a flat sibling list where month
// headers and day headers change parser state and each hour list emits one
// screening under the headers last seen.
func (s *cinetecaScraper) parseSessions(doc *goquery.Document, year int, tickets string, film *records.Film) {
	items := doc.Find(".sb-sessions__items").First()
	if items.Length() == 0 {
		return
	}

	var month time.Month
	day := 0
	items.Children().Each(func(_ int, elem *goquery.Selection) {
		switch {
		case elem.Is("h2.sb-sessions__date-month"):
			month = 0
			if m, ok := spanishMonth(elem.Text()); ok {
				month = m
			}

		case elem.Is("h4.sb-sessions__date-day"):
			// "Jueves 29", keep the number
			day = 0
			fields := strings.Fields(htmlutil.CleanText(elem.Text()))
			if len(fields) > 0 {
				if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil {
					day = n
				}
			}

		case elem.Is("ul.sb-sessions__date-hours"):
			if month == 0 || day == 0 {
				return
			}
			hour := elem.Find("li.sb-sessions__date-hours-hour").First()
			if hour.Length() == 0 {
				return
			}
			clock, ok := normalizeTime(trailingHourUnit.ReplaceAllString(strings.TrimSpace(hour.Text()), ""))
			if !ok {
				return
			}
			date, ok := dayMonthDate(year, int(month), day)
			if !ok {
				return
			}
			film.AddScreening(records.Screening{
				Timestamp:  stamp(date, clock),
				Location:   s.Name(),
				UrlTickets: tickets,
				UrlInfo:    film.TheaterFilmLink,
			})
		}
	})
}
