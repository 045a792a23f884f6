package main

import (
	"database/sql"
	"flag"
	"log/slog"

	"filmcalendar-backend/lib/configutil"
	configlibsql "filmcalendar-backend/lib/configutil/libsql"
	"filmcalendar-backend/lib/scrapers/theaters"
	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/lib/timezone"
	"filmcalendar-backend/services/filmcal"
	"filmcalendar-backend/services/filmcal/letterboxd"
	"filmcalendar-backend/services/filmcal/store"
	"filmcalendar-backend/services/filmcal/tmdb"

	"github.com/dgraph-io/badger/v4"
	"github.com/robfig/cron/v3"
)

type Config struct {
	ResultsDb  string              `json:"results_db"`
	MasterCsv  string              `json:"master_csv"`
	ExportJson string              `json:"export_json"`
	TmdbApiKey string              `json:"tmdb_api_key"`
	PageCache  string              `json:"page_cache"`
	Upload     configlibsql.Struct `json:"upload"`
}

// weekly theaters refresh monday morning, monthly ones on the 1st. Both
// run well before madrid box offices open.
const (
	weeklySpec  = "0 6 * * 1"
	monthlySpec = "0 6 1 * *"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	initialRefresh := flag.Bool("refresh", false, "Trigger a full refresh immediately on run.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.ResultsDb == "" {
		config.ResultsDb = "results.db"
	}
	if config.MasterCsv == "" {
		config.MasterCsv = "master.csv"
	}

	results, err := store.OpenResults(config.ResultsDb)
	if err != nil {
		serviceutil.Fatal("failed to open results db", err)
	}
	defer results.Close()

	var lbOpts letterboxd.ClientOptions
	if config.PageCache != "" {
		cache, err := badger.Open(badger.DefaultOptions(config.PageCache))
		if err != nil {
			serviceutil.Fatal("failed to open page cache", err)
		}
		defer cache.Close()
		lbOpts.Cache = cache
	}

	var tmdbClient *tmdb.Client
	if config.TmdbApiKey != "" {
		tmdbClient = tmdb.NewClient(config.TmdbApiKey, restyOutput(*verbose, ".dev/resty/tmdb"))
	}

	var uploadDb *sql.DB
	if config.Upload != (configlibsql.Struct{}) {
		uploadDb, err = config.Upload.OpenDB()
		if err != nil {
			serviceutil.Fatal("failed to open upload database", err)
		}
		defer uploadDb.Close()
	}

	service := filmcal.NewService(filmcal.ServiceOptions{
		Client: theaters.NewClient(restyOutput(*verbose, ".dev/resty/theaters")),
		Letterboxd: letterboxd.NewClient(
			restyOutput(*verbose, ".dev/resty/letterboxd"),
			lbOpts,
		),
		Tmdb:       tmdbClient,
		Results:    results,
		Upload:     uploadDb,
		MasterCsv:  config.MasterCsv,
		ExportJson: config.ExportJson,
	})

	refresh := func(period theaters.UpdatePeriod) func() {
		return func() {
			err := service.Refresh(ctx, period)
			if err != nil {
				slog.ErrorContext(ctx, "refresh failed", "period", period, "err", err)
			}
		}
	}

	c := cron.New(cron.WithLocation(timezone.Location), cron.WithLogger(cronLogger{}))
	if _, err := c.AddFunc(weeklySpec, refresh(theaters.UpdateWeekly)); err != nil {
		serviceutil.Fatal("failed to schedule weekly refresh", err)
	}
	if _, err := c.AddFunc(monthlySpec, refresh(theaters.UpdateMonthly)); err != nil {
		serviceutil.Fatal("failed to schedule monthly refresh", err)
	}
	c.Start()
	defer c.Stop()

	if *initialRefresh {
		slog.Info("refreshing on start")
		go func() {
			refresh(theaters.UpdateWeekly)()
			refresh(theaters.UpdateMonthly)()
		}()
	}

	<-ctx.Done()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
