// Package scraper runs theater scrapers over a date window and folds
// their output into one film list. Each theater runs inside its own
// error boundary: a site that breaks, times out or panics costs the run
// that theater's films and nothing else.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/scrapers/theaters"
	"filmcalendar-backend/services/filmcal/merge"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("filmcal/scraper")

type Options struct {
	// registry keys or venue names to scrape, empty means every
	// supported theater
	Theaters []string
	Window   theaters.DateRange
}

// TheaterResult is one theater's slice of the run. Films is nil when Err
// is set.
type TheaterResult struct {
	Key      string
	Name     string
	Films    []records.Film
	Duration time.Duration
	Err      error
}

func (t TheaterResult) Screenings() int {
	total := 0
	for _, film := range t.Films {
		total += len(film.Dates)
	}
	return total
}

// Result is a whole run: every theater's outcome plus the combined film
// list, folded by detail link and sorted by title.
type Result struct {
	Films    []records.Film
	Theaters []TheaterResult
}

func (r Result) Screenings() int {
	total := 0
	for _, film := range r.Films {
		total += len(film.Dates)
	}
	return total
}

// Failed lists the theaters whose scrape errored.
func (r Result) Failed() []TheaterResult {
	var failed []TheaterResult
	for _, tr := range r.Theaters {
		if tr.Err != nil {
			failed = append(failed, tr)
		}
	}
	return failed
}

// Summary renders the per-theater run report shown after a scrape.
func (r Result) Summary() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Theater", "Films", "Screenings", "Duration", "Status"})
	for _, tr := range r.Theaters {
		status := "ok"
		if tr.Err != nil {
			status = tr.Err.Error()
		}
		t.AppendRow(table.Row{tr.Name, len(tr.Films), tr.Screenings(), tr.Duration.Round(time.Millisecond), status})
	}
	t.AppendFooter(table.Row{"Total", len(r.Films), r.Screenings(), "", ""})
	t.SetStyle(table.StyleRounded)
	return t.Render()
}

// Run scrapes the requested theaters in registry order. Only an unknown
// theater key is an error, individual scrape failures land in the
// result.
func Run(ctx context.Context, client *theaters.Client, opts Options) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	var selected []theaters.Scraper
	if len(opts.Theaters) == 0 {
		selected = theaters.All(client)
	} else {
		for _, key := range opts.Theaters {
			s, ok := theaters.ByKey(client, key)
			if !ok {
				return Result{}, fmt.Errorf("unknown theater: %s", key)
			}
			selected = append(selected, s)
		}
	}

	return run(ctx, selected, opts.Window), nil
}

func run(ctx context.Context, scrapers []theaters.Scraper, window theaters.DateRange) Result {
	var result Result
	for _, s := range scrapers {
		tr := scrapeOne(ctx, s, window)
		result.Theaters = append(result.Theaters, tr)
		result.Films = merge.Films(result.Films, tr.Films)
	}

	sort.SliceStable(result.Films, func(i, j int) bool {
		return result.Films[i].Title < result.Films[j].Title
	})
	return result
}

func scrapeOne(ctx context.Context, s theaters.Scraper, window theaters.DateRange) (result TheaterResult) {
	ctx, span := tracer.Start(ctx, s.Key()+":scrape")
	defer span.End()

	result.Key = s.Key()
	result.Name = s.Name()

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "scraper panicked")
			result.Films = nil
			result.Err = fmt.Errorf("%s: panic: %v", s.Key(), r)
			slog.ErrorContext(ctx, "scraper panicked", "theater", s.Key(), "panic", r)
		}
	}()

	slog.InfoContext(ctx, "scraping theater", "theater", s.Key(),
		"from", window.Start.Format(records.DateLayout),
		"to", window.End.Format(records.DateLayout))

	films, err := s.FetchFilms(ctx, window)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		result.Err = fmt.Errorf("%s: %w", s.Key(), err)
		slog.ErrorContext(ctx, "scrape failed", "theater", s.Key(), "err", err)
		return result
	}

	for _, film := range films {
		// scrapers shouldn't emit these, the boundary enforces it anyway
		if film.Title == "" || len(film.Dates) == 0 {
			slog.DebugContext(ctx, "dropping incomplete film", "theater", s.Key(),
				"title", film.Title, "dates", len(film.Dates))
			continue
		}
		result.Films = append(result.Films, film)
	}

	slog.InfoContext(ctx, "scraped theater", "theater", s.Key(),
		"films", len(result.Films), "duration", time.Since(start))
	return result
}
