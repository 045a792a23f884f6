package theaters

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// Location headers on the schedule → short display names. Headers for the
// chain's venues outside Madrid are skipped.
var embajadoresLocations = map[string]string{
	"Cine Embajadores":     "Embajadores Glorieta",
	"Cine Embajadores Río": "Embajadores Ercilla",
}

// Fixed special-session prefixes. The Laca y Palomitas ones vary
// ("especial 2º aniversario" and friends), so those go through a regex.
var embajadoresPrefixes = []string{
	"Domingo de clásicos:",
	"Cine y política:",
	"Espacio Queer:",
	"SESIÓN TETA:",
	"Clásicos al detalle:",
	"Música en cine:",
}

var (
	lacaPrefix     = regexp.MustCompile(`(?i)^(?:Laca y Palomitas[^:]*):?\s*`)
	h1TicketTail   = regexp.MustCompile(`[🎟▼\s]+$`)
	voseSlugTail   = regexp.MustCompile(`-vose$`)
	dubbedSlugTail = regexp.MustCompile(`-doblada-al-espanol$`)
)

func cleanEmbajadoresTitle(title string) string {
	title = records.CleanTitle(title)
	for _, prefix := range embajadoresPrefixes {
		if strings.HasPrefix(title, prefix) {
			return strings.TrimSpace(title[len(prefix):])
		}
	}
	return strings.TrimSpace(lacaPrefix.ReplaceAllString(title, ""))
}

func urlSlug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// baseSlug groups the VOSE and dubbed cuts of the same film:
// "el-agente-secreto-vose" → "el-agente-secreto".
func baseSlug(raw string) string {
	slug := urlSlug(raw)
	slug = voseSlugTail.ReplaceAllString(slug, "")
	return dubbedSlugTail.ReplaceAllString(slug, "")
}

// detectVersion reads the version straight off the URL slug. Unlike other
// venues there is no counterpart check: a -vose cut stays tagged VOSE.
func detectVersion(raw string) string {
	slug := urlSlug(raw)
	if strings.HasSuffix(slug, "-vose") {
		return "VOSE"
	}
	if strings.HasSuffix(slug, "-doblada-al-espanol") {
		return "dubbed"
	}
	return ""
}

type embajadoresEntry struct {
	url     string
	version string
}

type embajadoresScraper struct {
	client  *Client
	baseUrl string
}

// NewEmbajadores scrapes Cines Embajadores. The /madrid/ catalog lists one
// detail URL per cut of each film; cuts are grouped by base slug and their
// schedules merged into a single film, each session tagged with its cut's
// version.
func NewEmbajadores(client *Client) Scraper {
	return &embajadoresScraper{
		client:  client,
		baseUrl: "https://cinesembajadores.es",
	}
}

func (s *embajadoresScraper) Key() string                { return "embajadores" }
func (s *embajadoresScraper) Name() string               { return "Cines Embajadores" }
func (s *embajadoresScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

func (s *embajadoresScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "embajadores:FetchFilms")
	defer span.End()

	doc, err := s.client.Document(ctx, s.baseUrl+"/madrid/")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch catalog")
		return nil, err
	}

	slugOrder, groups := groupCatalogEntries(parseEmbajadoresCatalog(doc))

	fold := newFilmFold()
	for _, slug := range slugOrder {
		for _, entry := range groups[slug] {
			detailDoc, err := s.client.Document(ctx, entry.url)
			if err != nil {
				span.RecordError(err)
				slog.WarnContext(ctx, "embajadores: film page failed", "url", entry.url, "err", err)
				continue
			}
			s.client.Delay(300 * time.Millisecond)

			film, ok := s.parseDetail(detailDoc, entry.url, entry.version, window)
			if !ok {
				continue
			}
			fold.Add(slug, film)
		}
	}
	return fold.Films(), nil
}

// parseEmbajadoresCatalog extracts unique film detail urls in page order,
// with the #parrilla fragments stripped.
func parseEmbajadoresCatalog(doc *goquery.Document) []embajadoresEntry {
	seen := make(map[string]bool)
	var entries []embajadoresEntry
	doc.Find(`a[href*="/pelicula/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _, _ := strings.Cut(a.AttrOr("href", ""), "#")
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		entries = append(entries, embajadoresEntry{url: href, version: detectVersion(href)})
	})
	return entries
}

func groupCatalogEntries(entries []embajadoresEntry) ([]string, map[string][]embajadoresEntry) {
	var order []string
	groups := make(map[string][]embajadoresEntry)
	for _, entry := range entries {
		slug := baseSlug(entry.url)
		if _, ok := groups[slug]; !ok {
			order = append(order, slug)
		}
		groups[slug] = append(groups[slug], entry)
	}
	return order, groups
}

func (s *embajadoresScraper) parseDetail(doc *goquery.Document, pageUrl, version string, window DateRange) (records.Film, bool) {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return records.Film{}, false
	}
	// the h1 ends in the "🎟 ▼" ticket shortcut
	raw := strings.TrimSpace(h1TicketTail.ReplaceAllString(htmlutil.CleanText(h1.Text()), ""))
	title := cleanEmbajadoresTitle(raw)
	if title == "" {
		return records.Film{}, false
	}

	director := ""
	doc.Find("label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !strings.Contains(label.Text(), "Dirección") {
			return true
		}
		director = htmlutil.CleanText(label.NextAllFiltered("span").First().Text())
		return false
	})

	parrilla := doc.Find("#parrilla").First()
	if parrilla.Length() == 0 {
		return records.Film{}, false
	}

	film := records.Film{
		Theater:         s.Name(),
		Title:           title,
		TheaterFilmLink: pageUrl,
		Director:        director,
	}

	location := ""
	parrilla.Children().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "h3":
			location = embajadoresLocations[htmlutil.CleanText(child.Text())]

		case "div":
			if location == "" {
				return
			}
			h4 := child.Find("h4").First()
			if h4.Length() == 0 {
				return
			}
			day, err := time.ParseInLocation("02/01/2006", htmlutil.CleanText(h4.Text()), timezone.Location)
			if err != nil || !window.Contains(day) {
				return
			}
			child.Find(`a[href*="reservaentradas"]`).Each(func(_ int, a *goquery.Selection) {
				clock, ok := normalizeTime(a.Text())
				if !ok {
					return
				}
				film.AddScreening(records.Screening{
					Timestamp:  stamp(day, clock),
					Location:   location,
					UrlTickets: a.AttrOr("href", ""),
					UrlInfo:    pageUrl,
					Version:    version,
				})
			})
		}
	})

	if len(film.Dates) == 0 {
		return records.Film{}, false
	}
	film.SortDates()
	return film, true
}
