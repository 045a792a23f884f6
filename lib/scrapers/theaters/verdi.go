package theaters

import (
	"context"
	"regexp"
	"strings"
	"time"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// Special-session prefixes Verdi prepends to titles.
var verdiPrefixes = []string{
	"Jueves de Imprescindibles:",
	"Miércoles Cultural:",
	"Anime Day:",
	"Sesión TETA:",
	"Verdi Club:",
	"Mañanas de Ópera y Ballet:",
}

type verdiScraper struct {
	client  *Client
	baseUrl string
}

// NewVerdi scrapes Cines Verdi Madrid from its cartelera page, which
// carries every film and every day in one document. Session rows are
// labelled "V.O. SUB. CASTELLANO", "CASTELLANO" or "OPERA"; a CASTELLANO
// session is tagged dubbed only when the same film also screens in V.O.,
// otherwise the film is assumed to be in its original language already.
func NewVerdi(client *Client) Scraper {
	return &verdiScraper{
		client:  client,
		baseUrl: "https://madrid.cines-verdi.com",
	}
}

func (s *verdiScraper) Key() string                { return "verdi" }
func (s *verdiScraper) Name() string               { return "Cines Verdi Madrid" }
func (s *verdiScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

func (s *verdiScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "verdi:FetchFilms")
	defer span.End()

	doc, err := s.client.Document(ctx, s.baseUrl+"/cartelera")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch cartelera")
		return nil, err
	}

	var films []records.Film
	doc.Find("article.article-cartelera").Each(func(_ int, article *goquery.Selection) {
		if film, ok := s.parseArticle(article, window); ok {
			films = append(films, film)
		}
	})
	return films, nil
}

var paneDate = regexp.MustCompile(`-(\d{8})$`)

type verdiSession struct {
	screening  records.Screening
	castellano bool
}

func (s *verdiScraper) parseArticle(article *goquery.Selection, window DateRange) (records.Film, bool) {
	anchor := article.Find("h2").First().Find("a").First()
	if anchor.Length() == 0 {
		return records.Film{}, false
	}

	// data-tiulo [sic] holds the clean title, percent-encoded as latin-1
	rawTitle := anchor.AttrOr("data-tiulo", "")
	if rawTitle == "" {
		rawTitle = anchor.AttrOr("title", "")
	}
	title := records.CleanTitle(decodeLatin1Percent(rawTitle), verdiPrefixes...)
	if title == "" {
		return records.Film{}, false
	}

	filmUrl := anchor.AttrOr("href", "")
	if strings.HasPrefix(filmUrl, "/") {
		filmUrl = s.baseUrl + filmUrl
	}

	director := ""
	article.Find("table.ficha tr").Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		td := row.Find("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		if strings.Contains(strings.ToUpper(htmlutil.CleanText(th.Text())), "DIRECTOR") {
			director = htmlutil.CleanText(td.Text())
		}
	})

	content := article.Find("div.tabs-performances").First().Find("div.tab-content").First()
	if content.Length() == 0 {
		return records.Film{}, false
	}

	var sessions []verdiSession
	hasVo, hasCastellano := false, false

	content.Find("div.tab-pane").Each(func(_ int, pane *goquery.Selection) {
		// pane ids end in the day: "{film_id}-{YYYYMMDD}"
		m := paneDate.FindStringSubmatch(pane.AttrOr("id", ""))
		if m == nil {
			return
		}
		day, err := time.ParseInLocation("20060102", m[1], timezone.Location)
		if err != nil || !window.Contains(day) {
			return
		}

		pane.Find("div.pelicula").Each(func(_ int, row *goquery.Selection) {
			label := htmlutil.CleanText(row.Find("span").First().Text())
			vo := strings.Contains(label, "V.O.")
			castellano := label == "CASTELLANO"
			if vo {
				hasVo = true
			}
			if castellano {
				hasCastellano = true
			}

			row.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				clock, ok := normalizeTime(a.Text())
				if !ok {
					return
				}
				sessions = append(sessions, verdiSession{
					screening: records.Screening{
						Timestamp:  stamp(day, clock),
						Location:   "Verdi",
						UrlTickets: a.AttrOr("href", ""),
						UrlInfo:    filmUrl,
					},
					castellano: castellano,
				})
			})
		})
	})

	if len(sessions) == 0 {
		return records.Film{}, false
	}

	film := records.Film{
		Theater:         s.Name(),
		Title:           title,
		TheaterFilmLink: filmUrl,
		Director:        director,
	}
	for _, sess := range sessions {
		if hasVo && hasCastellano && sess.castellano {
			sess.screening.Version = "dubbed"
		}
		film.AddScreening(sess.screening)
	}
	film.SortDates()
	return film, true
}

// decodeLatin1Percent undoes percent-encoding whose escapes are latin-1
// bytes, which is what Verdi's data attributes carry ("%E9" for é). Each
// escaped byte maps to the code point of the same value.
func decodeLatin1Percent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				b.WriteRune(rune(hi<<4 | lo))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
