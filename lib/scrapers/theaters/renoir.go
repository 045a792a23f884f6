package theaters

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

type renoirVenue struct {
	location  string
	cartelera string
}

type renoirScraper struct {
	client  *Client
	baseUrl string
	venues  []renoirVenue
}

// NewRenoir scrapes the three Madrid Renoir venues. Each venue exposes the
// same cartelera layout, so one parser runs per venue per day and films are
// folded across venues by (title, link). Renoir sessions carry no ticket or
// info urls, only a time and the venue name.
func NewRenoir(client *Client) Scraper {
	const base = "https://www.cinesrenoir.com"
	return &renoirScraper{
		client:  client,
		baseUrl: base,
		venues: []renoirVenue{
			{"Princesa", base + "/cine/cines-princesa/cartelera/"},
			{"Retiro", base + "/cine/renoir-retiro/cartelera/"},
			{"Plaza de España", base + "/cine/renoir-plaza-de-espana/cartelera/"},
		},
	}
}

func (s *renoirScraper) Key() string                { return "renoir" }
func (s *renoirScraper) Name() string               { return "Cines Renoir" }
func (s *renoirScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

func (s *renoirScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "renoir:FetchFilms")
	defer span.End()

	base, err := url.Parse(s.baseUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid base url")
		return nil, err
	}

	fold := newFilmFold()
	for _, day := range window.Days() {
		for _, venue := range s.venues {
			dayUrl := venue.cartelera + "?fecha=" + day.Format(records.DateLayout)
			doc, err := s.client.Document(ctx, dayUrl)
			if err != nil {
				span.RecordError(err)
				slog.WarnContext(ctx, "renoir: venue listing failed",
					"venue", venue.location, "date", day.Format(records.DateLayout), "err", err)
				continue
			}
			for _, film := range s.parseVenueDay(doc, base, day.Format(records.DateLayout), venue.location) {
				fold.Add(film.Title+"|"+film.TheaterFilmLink, film)
			}
		}
	}
	return fold.Films(), nil
}

func (s *renoirScraper) parseVenueDay(doc *goquery.Document, base *url.URL, date, location string) []records.Film {
	var films []records.Film
	// the desktop-only view, the mobile one repeats every entry
	doc.Find("div.my-account-content.d-none.d-lg-block").Each(func(_ int, container *goquery.Selection) {
		infoCol := container.Find("div.col-4").First()
		if infoCol.Length() == 0 {
			return
		}
		anchor := infoCol.Find("a").First()
		if anchor.Length() == 0 {
			return
		}
		title := htmlutil.CleanText(anchor.Text())
		if title == "" {
			return
		}
		if textutil.IsUpper(title) {
			title = textutil.TitleCase(title)
		}
		filmUrl := anchor.AttrOr("href", "")
		if filmUrl != "" && !strings.HasPrefix(filmUrl, "http") {
			filmUrl = htmlutil.ResolveURL(base, filmUrl)
		}

		director := ""
		if b := infoCol.Find("small b").First(); b.Length() > 0 {
			director = htmlutil.CleanText(b.Text())
			if strings.HasPrefix(strings.ToLower(director), "de ") {
				director = strings.TrimSpace(director[3:])
			}
		}

		film := records.Film{
			Theater:         s.Name(),
			Title:           title,
			TheaterFilmLink: filmUrl,
			Director:        director,
		}
		container.Find("div.col-7").First().Find("div.text-center").Each(func(_ int, timeDiv *goquery.Selection) {
			link := timeDiv.Find("a.btn").First()
			if link.Length() == 0 {
				return
			}
			clock, ok := normalizeTime(link.Text())
			if !ok {
				return
			}
			film.AddScreening(records.Screening{
				Timestamp: date + " " + clock,
				Location:  location,
			})
		})
		if len(film.Dates) == 0 {
			return
		}
		films = append(films, film)
	})
	return films
}
