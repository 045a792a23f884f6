package theaters

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"filmcalendar-backend/lib/htmlutil"
	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type golemScraper struct {
	client  *Client
	baseUrl string
}

// NewGolem scrapes the Golem Madrid billboard. The site is 90s-style nested
// layout tables, so showtimes are found by walking up from each title anchor
// to the enclosing block rather than by any stable container class.
func NewGolem(client *Client) Scraper {
	return &golemScraper{
		client:  client,
		baseUrl: "https://www.golem.es",
	}
}

func (s *golemScraper) Key() string                { return "golem" }
func (s *golemScraper) Name() string               { return "Golem Madrid" }
func (s *golemScraper) UpdatePeriod() UpdatePeriod { return UpdateWeekly }

func (s *golemScraper) FetchFilms(ctx context.Context, window DateRange) ([]records.Film, error) {
	ctx, span := tracer.Start(ctx, "golem:FetchFilms")
	defer span.End()

	fold := newFilmFold()
	for _, day := range window.Days() {
		dayUrl := s.baseUrl + "/golem/golem-madrid/" + day.Format("20060102")
		doc, err := s.client.Document(ctx, dayUrl)
		if err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "golem: day listing failed", "date", day.Format(records.DateLayout), "err", err)
			continue
		}
		for _, film := range s.parseDay(doc, day) {
			fold.Add(film.Title+"|"+film.TheaterFilmLink, film)
		}
	}

	films := fold.Films()

	// Directors live on the film pages, fetched once per distinct page.
	directors := map[string]string{}
	for i := range films {
		filmUrl := films[i].TheaterFilmLink
		if filmUrl == "" {
			continue
		}
		director, ok := directors[filmUrl]
		if !ok {
			director = s.fetchDirector(ctx, filmUrl)
			directors[filmUrl] = director
		}
		films[i].Director = director
	}
	return films, nil
}

func (s *golemScraper) absolute(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	return s.baseUrl + href
}

func (s *golemScraper) parseDay(doc *goquery.Document, day time.Time) []records.Film {
	var films []records.Film
	doc.Find("a.txtNegXXL").Each(func(_ int, anchor *goquery.Selection) {
		title := htmlutil.CleanText(strings.ReplaceAll(anchor.Text(), " (V.O.S.E.)", ""))
		if title == "" {
			return
		}
		infoUrl := s.absolute(anchor.AttrOr("href", ""))

		block := sessionBlock(anchor)
		if block == nil {
			return
		}

		film := records.Film{
			Theater:         s.Name(),
			Title:           title,
			TheaterFilmLink: infoUrl,
		}
		block.Find("span.horaXXXL a[href]").Each(func(_ int, a *goquery.Selection) {
			clock, ok := normalizeTime(a.Text())
			if !ok {
				return
			}
			film.AddScreening(records.Screening{
				Timestamp:  stamp(day, clock),
				Location:   "Golem",
				UrlTickets: s.absolute(a.AttrOr("href", "")),
				UrlInfo:    infoUrl,
			})
		})
		if len(film.Dates) == 0 {
			return
		}
		films = append(films, film)
	})
	return films
}

// sessionBlock finds the markup block holding an entry's showtimes: the
// white background cell the listing entry sits in when there is one, else
// the nearest enclosing table that carries ticket cells.
func sessionBlock(anchor *goquery.Selection) *goquery.Selection {
	if cell := anchor.Closest(`td[bgcolor="#ffffff"]`); cell.Length() > 0 {
		return cell
	}
	cur := anchor
	for i := 0; i < 6; i++ {
		if goquery.NodeName(cur) == "table" && cur.Find("td.CajaVentasSup").Length() > 0 {
			return cur
		}
		parent := cur.Parent()
		if parent.Length() == 0 {
			break
		}
		cur = parent
	}
	return nil
}

func (s *golemScraper) fetchDirector(ctx context.Context, filmUrl string) string {
	doc, err := s.client.Document(ctx, filmUrl)
	if err != nil {
		slog.WarnContext(ctx, "golem: film page failed", "url", filmUrl, "err", err)
		return ""
	}
	s.client.Delay(500 * time.Millisecond)

	director := ""
	doc.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
		if !strings.Contains(ownText(td), "Dirigida por:") {
			return true
		}
		value := htmlutil.CleanText(td.NextAllFiltered("td").First().Text())
		if value == "" {
			return true
		}
		director = textutil.TitleCase(value)
		return false
	})
	return director
}

// ownText returns the text held directly by the node, excluding descendants.
func ownText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				b.WriteString(child.Data)
			}
		}
	}
	return b.String()
}
