package theaters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"filmcalendar-backend/lib/browser"
	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/textutil"
	"filmcalendar-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel/codes"
)

type salaEquisScraper struct {
	client  *Client
	baseUrl string
	render  browser.RenderFunc
	sleep   func(time.Duration)
}

// NewSalaEquis scrapes Sala Equis. Film pages under /ciclos/ are plain
// HTML, but session times only exist inside the kinetike ticketing widget,
// which draws its rows with JS and reveals times after a SESIONES click.
// The browser is launched lazily, films without a kinetike link never pay
// for it. Ticket urls stay the film's generic kinetike url.
func NewSalaEquis(client *Client) Scraper {
	return &salaEquisScraper{
		client:  client,
		baseUrl: "https://salaequis.es",
		sleep:   time.Sleep,
	}
}

func (s *salaEquisScraper) Key() string                { return "sala-equis" }
func (s *salaEquisScraper) Name() string               { return "Sala Equis" }
func (s *salaEquisScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

func (s *salaEquisScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "sala-equis:FetchFilms")
	defer span.End()

	var session browser.Interface
	defer func() {
		if session != nil {
			session.Close()
		}
	}()
	render := s.render
	ensureRender := func() (browser.RenderFunc, error) {
		if render != nil {
			return render, nil
		}
		sess, err := browser.Headless()
		if err != nil {
			return nil, err
		}
		session = sess
		render = browser.Renderer(sess)
		return render, nil
	}

	doc, err := s.client.Document(ctx, s.baseUrl+"/taquilla/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch taquilla")
		return nil, err
	}

	var films []records.Film
	for _, filmUrl := range parseTaquilla(doc) {
		detailDoc, err := s.client.Document(ctx, filmUrl)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "sala-equis: film page failed", "url", filmUrl, "err", err)
			continue
		}
		s.client.Delay(300 * time.Millisecond)

		film, kinetikeUrl, ok := s.parseDetail(detailDoc, filmUrl)
		if !ok || kinetikeUrl == "" {
			continue
		}

		r, err := ensureRender()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to launch browser")
			return nil, err
		}
		screenings, err := s.kinetikeSessions(ctx, r, kinetikeUrl, filmUrl, window)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "sala-equis: kinetike sessions failed", "url", kinetikeUrl, "err", err)
			continue
		}
		if len(screenings) == 0 {
			continue
		}
		for _, scr := range screenings {
			film.AddScreening(scr)
		}
		film.SortDates()
		films = append(films, film)
	}
	return films, nil
}

// parseTaquilla extracts unique /ciclos/ film urls in page order, skipping
// links to the bare index.
func parseTaquilla(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var urls []string
	doc.Find(`a[href*="/ciclos/"]`).Each(func(_ int, a *goquery.Selection) {
		u := strings.TrimRight(a.AttrOr("href", ""), "/") + "/"
		if strings.HasSuffix(strings.TrimRight(u, "/"), "/ciclos") {
			return
		}
		if seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	})
	return urls
}

var shortDescLine = regexp.MustCompile(`^(.+?)\s*/\s*.+?\s*/\s*(\d{4})\s*$`)

func (s *salaEquisScraper) parseDetail(doc *goquery.Document, filmUrl string) (records.Film, string, bool) {
	h1 := doc.Find("h1.product_title").First()
	if h1.Length() == 0 {
		return records.Film{}, "", false
	}
	title := htmlutil.CleanText(h1.Text())
	if title == "" {
		return records.Film{}, "", false
	}
	if textutil.IsUpper(title) {
		title = textutil.TitleCase(title)
	}

	kinetikeUrl := ""
	if a := doc.Find(`a[href*="kinetike"]`).First(); a.Length() > 0 {
		kinetikeUrl = a.AttrOr("href", "")
	}

	// "Director Name / Country / 2025" somewhere in the short description
	director, year := "", ""
	doc.Find("div.shortDescription p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		m := shortDescLine.FindStringSubmatch(htmlutil.CleanText(p.Text()))
		if m == nil {
			return true
		}
		director = strings.TrimSpace(m[1])
		year = m[2]
		return false
	})

	return records.Film{
		Theater:         s.Name(),
		Title:           title,
		TheaterFilmLink: filmUrl,
		Director:        director,
		Year:            year,
	}, kinetikeUrl, true
}

// errStaleSessionRow signals that a SESIONES row disappeared between the
// date-gathering render and the click render for that row.
var errStaleSessionRow = errors.New("session row disappeared")

// kinetikeSessions drives the ticketing widget: one render to list the
// date rows, then one render per in-range date that clicks its SESIONES
// button and reads the revealed time slots.
func (s *salaEquisScraper) kinetikeSessions(ctx context.Context, render browser.RenderFunc, kinetikeUrl, filmUrl string, window DateRange) ([]records.Screening, error) {
	rendered, err := render(ctx, kinetikeUrl, s.settle)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return nil, err
	}
	dateTexts := parseKinetikeDates(doc)
	if len(dateTexts) == 0 {
		return nil, nil
	}

	var screenings []records.Screening
	seen := make(map[string]bool)
	for i, dateText := range dateTexts {
		day, err := time.ParseInLocation("02/01/2006", dateText, timezone.Location)
		if err != nil || !window.Contains(day) {
			continue
		}

		rendered, err := render(ctx, kinetikeUrl, s.revealSessions(i))
		if err != nil {
			if errors.Is(err, errStaleSessionRow) {
				continue
			}
			return nil, err
		}
		dayDoc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
		if err != nil {
			return nil, err
		}
		for _, value := range parseKinetikeTimes(dayDoc) {
			clock, ok := normalizeTime(value)
			if !ok {
				continue
			}
			ts := stamp(day, clock)
			if seen[ts] {
				continue
			}
			seen[ts] = true
			screenings = append(screenings, records.Screening{
				Timestamp:  ts,
				Location:   s.Name(),
				UrlTickets: kinetikeUrl,
				UrlInfo:    filmUrl,
			})
		}
	}
	return screenings, nil
}

func (s *salaEquisScraper) settle(page *rod.Page) error {
	s.sleep(2 * time.Second)
	return nil
}

func (s *salaEquisScraper) revealSessions(i int) func(*rod.Page) error {
	return func(page *rod.Page) error {
		s.sleep(2 * time.Second)
		buttons, err := page.Elements(`input[value="SESIONES"]`)
		if err != nil {
			return err
		}
		if i >= len(buttons) {
			return fmt.Errorf("row %d of %d: %w", i, len(buttons), errStaleSessionRow)
		}
		if err := buttons[i].Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
		s.sleep(2 * time.Second)
		return nil
	}
}

// parseKinetikeDates lists the dd/mm/yyyy labels of the widget's session
// rows, second span of each row.
func parseKinetikeDates(doc *goquery.Document) []string {
	panel := doc.Find("div#PanelSesiones").First()
	if panel.Length() == 0 {
		return nil
	}
	var dates []string
	panel.Find("div.row.no-gutters.shadow-lg.border.rounded").Each(func(_ int, row *goquery.Selection) {
		spans := row.Find("span")
		if spans.Length() < 2 {
			return
		}
		dates = append(dates, htmlutil.CleanText(spans.Eq(1).Text()))
	})
	return dates
}

func parseKinetikeTimes(doc *goquery.Document) []string {
	var times []string
	doc.Find("input.btn.btn-info").Each(func(_ int, input *goquery.Selection) {
		if value := strings.TrimSpace(input.AttrOr("value", "")); value != "" {
			times = append(times, value)
		}
	})
	return times
}
