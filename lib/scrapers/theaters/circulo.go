package theaters

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

type circuloScraper struct {
	client     *Client
	listingUrl string
}

// NewCirculo scrapes the Cine Estudio at the Círculo de Bellas Artes. The
// listing page publishes weekly schedule tabs without a year anywhere, and
// each film's detail page carries the ticket link and the ficha with
// director and year.
func NewCirculo(client *Client) Scraper {
	return &circuloScraper{
		client:     client,
		listingUrl: "https://www.circulobellasartes.com/cine-estudio/",
	}
}

func (s *circuloScraper) Key() string                { return "circulo-bellas-artes" }
func (s *circuloScraper) Name() string               { return "Círculo de Bellas Artes" }
func (s *circuloScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

type circuloSession struct {
	title     string
	filmUrl   string
	director  string
	timestamp string
}

func (s *circuloScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "circulo-bellas-artes:FetchFilms")
	defer span.End()

	doc, err := s.client.Document(ctx, s.listingUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch listing")
		return nil, err
	}

	fold := newFilmFold()
	for _, sess := range parseCirculoTabs(ctx, doc, window.Start.Year()) {
		scr := records.Screening{
			Timestamp: sess.timestamp,
			Location:  "Cine Estudio",
			UrlInfo:   sess.filmUrl,
		}
		if !window.Contains(screeningDay(scr)) {
			continue
		}
		fold.Add(sess.filmUrl, records.Film{
			Theater:         s.Name(),
			Title:           sess.title,
			TheaterFilmLink: sess.filmUrl,
			Director:        sess.director,
			Dates:           []records.Screening{scr},
		})
	}

	// detail pages fill in ticket urls, director and year
	for _, key := range fold.order {
		film := fold.byKey[key]
		detailDoc, err := s.client.Document(ctx, film.TheaterFilmLink)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "circulo: detail page failed", "url", film.TheaterFilmLink, "err", err)
			continue
		}
		tickets, director, year := parseCirculoDetail(detailDoc)
		if tickets != "" {
			for i := range film.Dates {
				film.Dates[i].UrlTickets = tickets
			}
		}
		if director != "" {
			film.Director = director
		}
		if year != "" {
			film.Year = year
		}
		s.client.Delay(500 * time.Millisecond)
	}

	return fold.Films(), nil
}

func screeningDay(scr records.Screening) time.Time {
	day, _, _ := strings.Cut(scr.Timestamp, " ")
	t, _ := time.Parse(records.DateLayout, day)
	return t
}

func parseCirculoTabs(ctx context.Context, doc *goquery.Document, year int) []circuloSession {
	var sessions []circuloSession
	doc.Find("div.tabcontent").Each(func(_ int, tab *goquery.Selection) {
		tab.Find("div.cba_cine_table_container").Each(func(_ int, container *goquery.Selection) {
			dayDiv := container.Find("div.cba_cine_table_dia").First()
			if dayDiv.Length() == 0 {
				return
			}
			label := htmlutil.CleanText(dayDiv.Text())
			day, ok := parseCirculoDay(label, year)
			if !ok {
				slog.DebugContext(ctx, "circulo: unparseable day", "label", label)
				return
			}
			sc := container.Find("div.cba_cine_sesiones_container").First()
			if sc.Length() == 0 {
				return
			}
			sessions = append(sessions, parseCirculoSessions(sc, day)...)
		})
	})
	return sessions
}

// parseCirculoDay parses a schedule day header like "Mié, 11 Feb". The page
// never prints a year, so one is supplied by the caller.
func parseCirculoDay(label string, year int) (time.Time, bool) {
	parts := strings.SplitN(label, ",", 2)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	tokens := strings.Fields(parts[1])
	if len(tokens) != 2 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(tokens[0])
	if err != nil {
		return time.Time{}, false
	}
	month, ok := spanishMonth(tokens[1])
	if !ok {
		return time.Time{}, false
	}
	return dayMonthDate(year, int(month), day)
}

// parseCirculoSessions walks the repeating hora/titulo/tipo/info pattern.
// A titulo consumes the hora last seen.
func parseCirculoSessions(container *goquery.Selection, day time.Time) []circuloSession {
	var sessions []circuloSession
	currentTime := ""
	container.Children().Each(func(_ int, child *goquery.Selection) {
		switch {
		case child.HasClass("cba_cine_table_hora"):
			currentTime = htmlutil.CleanText(child.Text())

		case child.HasClass("cba_cine_table_titulo") && currentTime != "":
			link := child.Find("a").First()
			if link.Length() == 0 {
				return
			}
			clock, ok := normalizeTime(currentTime)
			currentTime = ""
			if !ok {
				return
			}
			sessions = append(sessions, circuloSession{
				title:     htmlutil.CleanText(link.Text()),
				filmUrl:   link.AttrOr("href", ""),
				director:  textAfter(link),
				timestamp: stamp(day, clock),
			})
		}
	})
	return sessions
}

// textAfter returns the trimmed text node directly following the selection,
// where the listing prints the director after the title link.
func textAfter(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	next := sel.Nodes[0].NextSibling
	if next == nil || next.Type != html.TextNode {
		return ""
	}
	return strings.TrimSpace(next.Data)
}

func parseCirculoDetail(doc *goquery.Document) (tickets, director, year string) {
	doc.Find("a.fl-button").EachWithBreak(func(_ int, btn *goquery.Selection) bool {
		span := btn.Find("span.fl-button-text").First()
		if span.Length() == 0 || !strings.Contains(span.Text(), "Comprar Entradas") {
			return true
		}
		tickets = btn.AttrOr("href", "")
		return false
	})

	doc.Find("table.cba_tabla_ficha tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := htmlutil.CleanText(cells.Eq(0).Text())
		value := htmlutil.CleanText(cells.Eq(1).Text())
		if value == "" {
			return
		}
		switch label {
		case "Dirección":
			director = value
		case "Año":
			year = value
		}
	})
	return tickets, director, year
}
