package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/scrapers/theaters"
	"filmcalendar-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	key   string
	name  string
	films []records.Film
	err   error
	panic string
}

func (f fakeScraper) Key() string  { return f.key }
func (f fakeScraper) Name() string { return f.name }

func (f fakeScraper) UpdatePeriod() theaters.UpdatePeriod { return theaters.UpdateWeekly }

func (f fakeScraper) FetchFilms(ctx context.Context, window theaters.DateRange) ([]records.Film, error) {
	if f.panic != "" {
		panic(f.panic)
	}
	return f.films, f.err
}

func testWindow() theaters.DateRange {
	return theaters.DateRange{
		Start: timezone.Date(2026, 3, 4, 0, 0),
		End:   timezone.Date(2026, 3, 10, 0, 0),
	}
}

func filmWith(theater, title, link string, timestamps ...string) records.Film {
	film := records.Film{Theater: theater, Title: title, TheaterFilmLink: link}
	for _, ts := range timestamps {
		film.AddScreening(records.Screening{Timestamp: ts, Location: theater})
	}
	return film
}

func TestRunIsolatesFailures(t *testing.T) {
	scrapers := []theaters.Scraper{
		fakeScraper{key: "ok", name: "Cine OK", films: []records.Film{
			filmWith("Cine OK", "Arrebato", "https://ok.example/arrebato", "2026-03-04 20:00"),
		}},
		fakeScraper{key: "broken", name: "Cine Roto", err: errors.New("listing markup changed")},
		fakeScraper{key: "panicky", name: "Cine Pánico", panic: "nil deref in parser"},
	}

	result := run(context.Background(), scrapers, testWindow())

	require.Len(t, result.Theaters, 3)
	require.Len(t, result.Films, 1)
	require.Equal(t, "Arrebato", result.Films[0].Title)

	require.NoError(t, result.Theaters[0].Err)
	require.ErrorContains(t, result.Theaters[1].Err, "broken: listing markup changed")
	require.ErrorContains(t, result.Theaters[2].Err, "panic: nil deref in parser")
	require.Empty(t, result.Theaters[2].Films)

	require.Len(t, result.Failed(), 2)
}

func TestRunDropsIncompleteFilms(t *testing.T) {
	scrapers := []theaters.Scraper{
		fakeScraper{key: "ok", name: "Cine OK", films: []records.Film{
			filmWith("Cine OK", "Completa", "https://ok.example/completa", "2026-03-04 20:00"),
			filmWith("Cine OK", "Sin sesiones", "https://ok.example/sin-sesiones"),
			filmWith("Cine OK", "", "https://ok.example/sin-titulo", "2026-03-05 18:00"),
		}},
	}

	result := run(context.Background(), scrapers, testWindow())

	require.Len(t, result.Films, 1)
	require.Equal(t, "Completa", result.Films[0].Title)
	require.Equal(t, 1, result.Screenings())
}

func TestRunFoldsAcrossScrapersAndSortsByTitle(t *testing.T) {
	// the same retrospective listed under two tabs of one site shares its
	// detail link, the fold unions the screenings
	scrapers := []theaters.Scraper{
		fakeScraper{key: "tab-a", name: "Cineteca Sala Azcona", films: []records.Film{
			filmWith("Cineteca", "Zulueta y el vértigo", "https://cineteca.example/zulueta", "2026-03-04 20:00"),
		}},
		fakeScraper{key: "tab-b", name: "Cineteca Sala Borau", films: []records.Film{
			filmWith("Cineteca", "Zulueta y el vértigo", "https://cineteca.example/zulueta", "2026-03-05 18:00"),
			filmWith("Cineteca", "Arrebato", "https://cineteca.example/arrebato", "2026-03-06 22:00"),
		}},
	}

	result := run(context.Background(), scrapers, testWindow())

	require.Len(t, result.Films, 2)
	require.Equal(t, "Arrebato", result.Films[0].Title)
	require.Equal(t, "Zulueta y el vértigo", result.Films[1].Title)
	require.Len(t, result.Films[1].Dates, 2)
	require.Equal(t, 3, result.Screenings())
}

func TestRunUnknownTheater(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{
		Theaters: []string{"multicines-inventados"},
		Window:   testWindow(),
	})
	require.ErrorContains(t, err, "unknown theater: multicines-inventados")
}

func TestSummaryTable(t *testing.T) {
	scrapers := []theaters.Scraper{
		fakeScraper{key: "ok", name: "Cine OK", films: []records.Film{
			filmWith("Cine OK", "Arrebato", "https://ok.example/arrebato", "2026-03-04 20:00", "2026-03-05 20:00"),
		}},
		fakeScraper{key: "broken", name: "Cine Roto", err: errors.New("listing markup changed")},
	}

	result := run(context.Background(), scrapers, testWindow())
	summary := result.Summary()

	require.Contains(t, summary, "Cine OK")
	require.Contains(t, summary, "Cine Roto")
	require.Contains(t, summary, "listing markup changed")
	require.Contains(t, summary, "Total")
	// one film, two screenings
	require.True(t, strings.Contains(summary, "1") && strings.Contains(summary, "2"))
}
