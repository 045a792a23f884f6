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

	"filmcalendar-backend/lib/browser"
	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/textutil"
	"filmcalendar-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"go.opentelemetry.io/otel/codes"
)

const (
	// berlangaPickerReady polls until the jQuery daterangepicker has
	// initialized (max ~10s).
	berlangaPickerReady = `() => {
		return new Promise((resolve, reject) => {
			let tries = 0;
			const check = () => {
				if (typeof jQuery !== 'undefined' &&
					jQuery('#rango-fechas').data('daterangepicker') !== undefined) {
					resolve(true);
				} else if (tries++ > 100) {
					reject(new Error('daterangepicker not initialized after 10s'));
				} else {
					setTimeout(check, 100);
				}
			};
			check();
		});
	}`

	// The picker and the load-more button are driven through page JS:
	// real clicks get intercepted by the fixed navbar.
	berlangaApplyRange = `(start, end) => {
		var picker = jQuery('#rango-fechas').data('daterangepicker');
		picker.setStartDate(start);
		picker.setEndDate(end);
		picker.clickApply();
	}`

	berlangaMoreVisible = `() => {
		const btn = document.querySelector('#mas-actividades');
		return btn !== null && btn.offsetParent !== null;
	}`

	berlangaClickMore = `() => document.querySelector('#mas-actividades').click()`
)

type salaBerlangaScraper struct {
	baseUrl     string
	entradasUrl string
	render      browser.RenderFunc
	sleep       func(time.Duration)
}

// NewSalaBerlanga scrapes Sala Berlanga. The activity listing is rendered
// by page JS behind a date range picker and a "Ver más actividades"
// button, so it needs a live browser rather than the shared http client.
// A second rendered pass against the entradas.com SPA upgrades each
// session's generic ticket url to its per-session event url.
func NewSalaBerlanga(_ *Client) Scraper {
	return &salaBerlangaScraper{
		baseUrl:     "https://salaberlanga.com",
		entradasUrl: "https://cine.entradas.com",
		sleep:       time.Sleep,
	}
}

func (s *salaBerlangaScraper) Key() string                { return "sala-berlanga" }
func (s *salaBerlangaScraper) Name() string               { return "Sala Berlanga" }
func (s *salaBerlangaScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

func (s *salaBerlangaScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "sala-berlanga:FetchFilms")
	defer span.End()

	render := s.render
	if render == nil {
		session, err := browser.Headless()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to launch browser")
			return nil, err
		}
		defer session.Close()
		render = browser.Renderer(session)
	}

	listingHtml, err := render(ctx, s.baseUrl+"/programacion-de-actividades/", s.loadAllActivities(ctx, window))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render listing")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHtml))
	if err != nil {
		return nil, err
	}

	films := s.parseListing(ctx, doc, window)
	for i := range films {
		s.resolveSessionTickets(ctx, render, &films[i])
	}
	return films, nil
}

// loadAllActivities applies the window to the date range picker, waits out
// the AJAX reload and clicks load-more until everything is on the page.
func (s *salaBerlangaScraper) loadAllActivities(ctx context.Context, window DateRange) func(*rod.Page) error {
	return func(page *rod.Page) error {
		_, err := page.Context(ctx).Timeout(browser.PageStableTimeout).Eval(berlangaPickerReady)
		if err != nil {
			return fmt.Errorf("date range picker never initialized: %w", err)
		}
		// the picker speaks DD/MM/YYYY
		_, err = page.Eval(berlangaApplyRange,
			window.Start.Format("02/01/2006"), window.End.Format("02/01/2006"))
		if err != nil {
			return fmt.Errorf("applying date range: %w", err)
		}
		s.sleep(2 * time.Second)

		_, err = page.Timeout(browser.PageStableTimeout).Element("#resultado-actividades .item-actividad")
		if err != nil {
			slog.WarnContext(ctx, "sala-berlanga: timed out waiting for activities")
		}
		s.sleep(time.Second)

		for i := 0; i < 20; i++ {
			visible, err := page.Eval(berlangaMoreVisible)
			if err != nil || !visible.Value.Bool() {
				break
			}
			if _, err := page.Eval(berlangaClickMore); err != nil {
				break
			}
			s.sleep(1500 * time.Millisecond)
		}
		return nil
	}
}

func (s *salaBerlangaScraper) parseListing(ctx context.Context, doc *goquery.Document, window DateRange) []records.Film {
	base, _ := url.Parse(s.baseUrl)

	container := doc.Find("#resultado-actividades").First()
	if container.Length() == 0 {
		container = doc.Find("#portada-actividades").First()
	}
	if container.Length() == 0 {
		slog.WarnContext(ctx, "sala-berlanga: no activity container in rendered page")
		return nil
	}
	cards := container.Find(".item-actividad")
	if cards.Length() == 0 {
		cards = container.Find(".card")
	}

	fold := newFilmFold()
	cards.Each(func(_ int, card *goquery.Selection) {
		if film, ok := s.parseCard(card, base, window); ok {
			fold.Add(film.TheaterFilmLink, film)
		}
	})
	return fold.Films()
}

var berlangaDate = regexp.MustCompile(`(?i)^(\d{1,2})\s+de\s+(\p{L}+)\s*-\s*(\d{1,2}:\d{2})h?`)

func (s *salaBerlangaScraper) parseCard(card *goquery.Selection, base *url.URL, window DateRange) (records.Film, bool) {
	// only the Cine category, the listing mixes in concerts and theater
	if category := card.Find(".categoria-sala-berlanga p").First(); category.Length() > 0 {
		if !textutil.MatchName(category.Text(), []string{"cine"}) {
			return records.Film{}, false
		}
	}

	titleAnchor := card.Find(".card-title a").First()
	if titleAnchor.Length() == 0 {
		return records.Film{}, false
	}
	title := htmlutil.CleanText(titleAnchor.Text())
	activityUrl := titleAnchor.AttrOr("href", "")
	if activityUrl != "" && !strings.HasPrefix(activityUrl, "http") {
		activityUrl = htmlutil.ResolveURL(base, activityUrl)
	}

	// "Director | Year | Duration'"
	director, year := "", ""
	if info := card.Find(".card-text-time").First(); info.Length() > 0 {
		parts := strings.Split(htmlutil.CleanText(info.Text()), "|")
		if len(parts) >= 1 {
			director = strings.TrimSpace(parts[0])
		}
		if len(parts) >= 2 {
			if y := strings.TrimSpace(parts[1]); isDigits(y) {
				year = y
			}
		}
	}

	ticketUrl := ""
	if a := card.Find(".card-text-comprar a").First(); a.Length() > 0 {
		ticketUrl = a.AttrOr("href", "")
	}

	datesEl := card.Find(".card-text-date").First()
	if datesEl.Length() == 0 {
		return records.Film{}, false
	}

	film := records.Film{
		Theater:         s.Name(),
		Title:           title,
		TheaterFilmLink: activityUrl,
		Director:        director,
		Year:            year,
	}
	refYear := window.Start.Year()
	for _, chunk := range htmlutil.TextChunks(datesEl) {
		if strings.Contains(strings.ToLower(chunk), "agotada") {
			continue
		}
		m := berlangaDate.FindStringSubmatch(chunk)
		if m == nil {
			continue
		}
		dayNum, _ := strconv.Atoi(m[1])
		month, ok := spanishMonth(m[2])
		if !ok {
			continue
		}
		day, ok := dayMonthDate(refYear, int(month), dayNum)
		if !ok || !window.Contains(day) {
			continue
		}
		clock, ok := normalizeTime(m[3])
		if !ok {
			continue
		}
		film.AddScreening(records.Screening{
			Timestamp:  stamp(day, clock),
			Location:   "Sala Berlanga",
			UrlTickets: ticketUrl,
			UrlInfo:    activityUrl,
		})
	}
	if len(film.Dates) == 0 {
		return records.Film{}, false
	}
	return film, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// resolveSessionTickets renders the film's entradas.com sessions page and
// swaps each screening's generic ticket url for its event url. Films whose
// cards carried no ticket link get a showGroups url built from the title
// slug. Failures leave the generic urls in place.
func (s *salaBerlangaScraper) resolveSessionTickets(ctx context.Context, render browser.RenderFunc, film *records.Film) {
	sessionsUrl := ""
	for _, d := range film.Dates {
		if d.UrlTickets != "" {
			sessionsUrl = d.UrlTickets
			break
		}
	}
	if sessionsUrl == "" {
		slug := textutil.Slugify(film.Title)
		if slug == "" {
			return
		}
		sessionsUrl = fmt.Sprintf("%s/cine/madrid/sala-berlanga/sesiones?ref=770&showAllDates=true&showGroups=%s",
			s.entradasUrl, slug)
	}

	rendered, err := render(ctx, sessionsUrl, func(page *rod.Page) error {
		_, err := page.Timeout(browser.PageStableTimeout).Element(`a[href*="evento"]`)
		if err != nil {
			return fmt.Errorf("no session links appeared: %w", err)
		}
		s.sleep(500 * time.Millisecond)
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "sala-berlanga: session urls unavailable", "film", film.Title, "err", err)
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return
	}
	sessionMap := parseEntradasSessions(doc, s.entradasUrl)
	if len(sessionMap) == 0 {
		return
	}

	for i, d := range film.Dates {
		ts, err := time.ParseInLocation(records.TimestampLayout, d.Timestamp, timezone.Location)
		if err != nil {
			continue
		}
		key := fmt.Sprintf("%02d/%02d %s", ts.Day(), int(ts.Month()), ts.Format("15:04"))
		if eventUrl, ok := sessionMap[key]; ok {
			film.Dates[i].UrlTickets = eventUrl
		}
	}
}

var entradasDateHeader = regexp.MustCompile(`^[a-záéíóú]+,\s*(\d{2}/\d{2})`)

// parseEntradasSessions maps "DD/MM HH:MM" to event urls on a rendered
// entradas.com sessions page. Session links sit under per-day header divs;
// the nearest preceding header is found by walking previous siblings up
// the ancestor chain. Tracking query params are stripped from event urls.
func parseEntradasSessions(doc *goquery.Document, baseUrl string) map[string]string {
	sessions := make(map[string]string)
	doc.Find(`a[href*="evento"]`).Each(func(_ int, link *goquery.Selection) {
		timeDiv := link.Find("div[data-show-link-time]").First()
		if timeDiv.Length() == 0 {
			return
		}
		clock := htmlutil.CleanText(timeDiv.Text())

		day := precedingDateHeader(link)
		if day == "" {
			return
		}

		parsed, err := url.Parse(link.AttrOr("href", ""))
		if err != nil {
			return
		}
		parsed.RawQuery = ""
		parsed.Fragment = ""
		eventUrl := parsed.String()
		if parsed.Scheme == "" {
			if base, err := url.Parse(baseUrl); err == nil {
				eventUrl = htmlutil.ResolveURL(base, eventUrl)
			}
		}
		sessions[day+" "+clock] = eventUrl
	})
	return sessions
}

func precedingDateHeader(link *goquery.Selection) string {
	node := link
	for node.Length() > 0 {
		prev := node.Prev()
		if prev.Length() > 0 && goquery.NodeName(prev) == "div" {
			if m := entradasDateHeader.FindStringSubmatch(htmlutil.CleanText(prev.Text())); m != nil {
				return m[1]
			}
		}
		if goquery.NodeName(node) == "body" {
			break
		}
		node = node.Parent()
	}
	return ""
}
