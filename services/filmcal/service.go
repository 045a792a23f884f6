// Package filmcal glues the scrape, merge, and metadata stages into the
// recurring refresh the daemon runs per update cadence.
package filmcal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"filmcalendar-backend/lib/scrapers/theaters"
	"filmcalendar-backend/lib/timezone"
	"filmcalendar-backend/services/filmcal/letterboxd"
	"filmcalendar-backend/services/filmcal/merge"
	"filmcalendar-backend/services/filmcal/scraper"
	"filmcalendar-backend/services/filmcal/store"
	"filmcalendar-backend/services/filmcal/tmdb"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("filmcal")

type ServiceOptions struct {
	Client     *theaters.Client
	Letterboxd *letterboxd.Client
	// Tmdb may be nil when no credential is configured, enrichment is
	// skipped then.
	Tmdb    *tmdb.Client
	Results *store.ResultsDB
	// Upload may be nil, the master then only lands on disk.
	Upload     *sql.DB
	MasterCsv  string
	ExportJson string
}

type Service struct {
	options ServiceOptions
	mu      sync.Mutex
}

func NewService(options ServiceOptions) *Service {
	return &Service{options: options}
}

// refreshWindow is the slice of the calendar a cadence covers: weekly
// theaters publish rolling programmes, monthly ones publish a month at
// a time.
func refreshWindow(period theaters.UpdatePeriod) theaters.DateRange {
	start := timezone.Today()
	if period == theaters.UpdateMonthly {
		return theaters.DateRange{Start: start, End: start.AddDate(0, 1, -1)}
	}
	return theaters.DateRange{Start: start, End: start.AddDate(0, 0, 6)}
}

// Refresh scrapes every theater on the given cadence and runs the full
// pipeline on the results: results db, master csv, letterboxd, tmdb,
// json export, website upload. Only one refresh runs at a time, a tick
// that fires during another one is dropped.
func (s *Service) Refresh(ctx context.Context, period theaters.UpdatePeriod) error {
	if !s.mu.TryLock() {
		slog.WarnContext(ctx, "refresh already running, skipping", "period", period)
		return nil
	}
	defer s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "service:Refresh")
	defer span.End()
	span.SetAttributes(attribute.String("period", string(period)))

	keys := theaters.KeysByPeriod(period)
	if len(keys) == 0 {
		return nil
	}
	window := refreshWindow(period)

	result, err := scraper.Run(ctx, s.options.Client, scraper.Options{
		Theaters: keys,
		Window:   window,
	})
	if err != nil {
		return err
	}

	scrapedAt := timezone.Now()
	for _, tr := range result.Theaters {
		if tr.Err != nil {
			continue
		}
		err := s.options.Results.SaveRun(ctx, tr.Key, tr.Name, scrapedAt, tr.Films)
		if err != nil {
			return fmt.Errorf("save scrape results: %w", err)
		}
	}

	master, err := store.ReadMaster(s.options.MasterCsv)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read master csv: %w", err)
	}
	master = merge.Master(master, merge.AsMaster(result.Films))

	master, err = s.options.Letterboxd.Rate(ctx, master)
	if err != nil {
		return err
	}
	if s.options.Tmdb != nil {
		master, err = s.options.Tmdb.Enrich(ctx, master)
		if err != nil {
			return err
		}
	}

	store.SortByRating(master)
	err = store.WriteMaster(s.options.MasterCsv, master)
	if err != nil {
		return fmt.Errorf("write master csv: %w", err)
	}
	if s.options.ExportJson != "" {
		err := store.WriteExport(s.options.ExportJson, master)
		if err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}

	if s.options.Upload != nil {
		stats, err := store.Upload(ctx, s.options.Upload, master, false)
		if err != nil {
			return fmt.Errorf("upload films: %w", err)
		}
		slog.InfoContext(
			ctx, "uploaded master",
			"new_films", stats.NewFilms,
			"screenings", stats.Screenings,
			"skipped", stats.Skipped,
		)
	}

	slog.InfoContext(
		ctx, "refresh complete",
		"period", period,
		"films", len(master),
		"failed_theaters", len(result.Failed()),
	)
	return nil
}
