package theaters

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Special-session prefixes Cine Paz prepends to titles.
var cinePazPrefixes = []string{
	"AETERNA:",
	"Muestra Aeterna:",
	"Nuevas miradas de cine asiático:",
	"Modo avión:",
}

var (
	filmIdPattern = regexp.MustCompile(`/detalles/(\d+)_`)
	voseTimeLead  = regexp.MustCompile(`(?i)^VOSE\s*`)
	voseUrlTail   = regexp.MustCompile(`-vose(/?)$`)
	dayMonthLabel = regexp.MustCompile(`(\d{2})/(\d{2})`)
)

type cinePazScraper struct {
	client  *Client
	baseUrl string
}

// NewCinePaz scrapes Cine Paz Madrid (mk2). The cartelera page carries all
// days; a separate VOSE page lists the films that screen subtitled, which
// is the only signal that a film's plain sessions are dubbed. VOSE sessions
// themselves carry no tag; a film never on the VOSE page is assumed to be
// Spanish already.
func NewCinePaz(client *Client) Scraper {
	return &cinePazScraper{
		client:  client,
		baseUrl: "https://www.cinepazmadrid.es",
	}
}

func (s *cinePazScraper) Key() string                { return "cine-paz" }
func (s *cinePazScraper) Name() string               { return "Cine Paz Madrid" }
func (s *cinePazScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

func (s *cinePazScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "cine-paz:FetchFilms")
	defer span.End()

	voseDoc, err := s.client.Document(ctx, s.baseUrl+"/es/vose")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch vose listing")
		return nil, err
	}
	voseIds := parseVoseIds(ctx, voseDoc)
	span.SetAttributes(attribute.Int("vose_films", len(voseIds)))

	doc, err := s.client.Document(ctx, s.baseUrl+"/es/cartelera")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch cartelera")
		return nil, err
	}
	return s.parseCartelera(doc, voseIds, window), nil
}

func extractFilmId(url string) string {
	if m := filmIdPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

func parseVoseIds(ctx context.Context, doc *goquery.Document) map[string]bool {
	ids := make(map[string]bool)
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find(`a[href*="/es/detalles/"]`)) {
		if id := extractFilmId(anchor.Href); id != "" {
			ids[id] = true
		}
	}
	return ids
}

// parseCartelera walks the flat child list of the schedule container:
// rotulo_dia separators set the current day, contenedor_cines blocks hold
// that day's film entries.
func (s *cinePazScraper) parseCartelera(doc *goquery.Document, voseIds map[string]bool, window DateRange) []records.Film {
	container := doc.Find("div.contenedor_horarios").First()
	if container.Length() == 0 {
		return nil
	}

	fold := newFilmFold()
	var current time.Time
	haveDay := false

	container.Children().Each(func(_ int, child *goquery.Selection) {
		if child.HasClass("rotulo_dia") {
			current, haveDay = s.resolveDayLabel(htmlutil.CleanText(child.Text()), window)
			return
		}
		if !child.HasClass("contenedor_cines") || !haveDay || !window.Contains(current) {
			return
		}
		child.Find("div.horarios").Each(func(_ int, horarios *goquery.Selection) {
			s.processEntry(horarios, current, voseIds, fold)
		})
	})
	return fold.Films()
}

// resolveDayLabel parses a day separator like "Hoy" or "Domingo 01/03".
// "Hoy" is the window's start day; DD/MM rolls into the next year when the
// month sits behind the window start.
func (s *cinePazScraper) resolveDayLabel(label string, window DateRange) (time.Time, bool) {
	if strings.EqualFold(strings.TrimSpace(label), "hoy") {
		d := window.Start
		return timezone.Date(d.Year(), d.Month(), d.Day(), 0, 0), true
	}
	m := dayMonthLabel.FindStringSubmatch(label)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return window.resolveDayMonth(day, month)
}

func (s *cinePazScraper) processEntry(horarios *goquery.Selection, day time.Time, voseIds map[string]bool, fold *filmFold) {
	peli := horarios.Find("div.peli").First()
	if peli.Length() == 0 {
		return
	}
	anchor := peli.Find("p.text-header-span").First().Find("a").First()
	if anchor.Length() == 0 {
		return
	}

	detailUrl := anchor.AttrOr("href", "")
	filmId := extractFilmId(detailUrl)
	if filmId == "" {
		return
	}
	title := records.CleanTitle(htmlutil.CleanText(anchor.Text()), cinePazPrefixes...)
	if title == "" {
		return
	}

	vose := peli.Find("div.etiqueta-vose").Length() > 0

	director := ""
	if p := peli.Find("p.gibsonL").First(); p.Length() > 0 {
		director = htmlutil.CleanText(p.Text())
		if strings.HasPrefix(strings.ToLower(director), "de ") {
			director = strings.TrimSpace(director[3:])
		}
	}

	version := ""
	if !vose && voseIds[filmId] {
		version = "dubbed"
	}

	horas := horarios.Find("div.horas").First()
	if horas.Length() == 0 {
		return
	}

	canonicalUrl := detailUrl
	if vose {
		canonicalUrl = voseUrlTail.ReplaceAllString(detailUrl, "$1")
	}
	film := records.Film{
		Theater:         s.Name(),
		Title:           title,
		TheaterFilmLink: canonicalUrl,
		Director:        director,
	}

	horas.Find("a.metrica").Each(func(_ int, a *goquery.Selection) {
		// "VOSE21:15" → "21:15"
		raw := voseTimeLead.ReplaceAllString(htmlutil.CleanText(a.Text()), "")
		clock, ok := normalizeTime(raw)
		if !ok {
			return
		}
		film.AddScreening(records.Screening{
			Timestamp:  stamp(day, clock),
			Location:   "Cine Paz",
			UrlTickets: a.AttrOr("href", ""),
			UrlInfo:    detailUrl,
			Version:    version,
		})
	})
	if len(film.Dates) == 0 {
		return
	}
	fold.Add(filmId, film)
}
