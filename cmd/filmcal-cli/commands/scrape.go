package commands

import (
	"fmt"
	"time"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/restyutil"
	"filmcalendar-backend/lib/scrapers/theaters"
	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/lib/timezone"
	"filmcalendar-backend/services/filmcal/scraper"
	"filmcalendar-backend/services/filmcal/store"

	"github.com/spf13/cobra"
)

var (
	scrapeTheaters *[]string
	scrapeFrom     *string
	scrapeTo       *string
	scrapeDays     *int
	scrapeDb       *string
	scrapeMaster   *string
	scrapeUpdate   *bool
)

func init() {
	scrapeTheaters = scrapeCmd.Flags().StringSlice("theaters", nil, "Theater keys to scrape, defaults to every supported theater.")
	scrapeFrom = scrapeCmd.Flags().String("from", "", "First day of the scrape window (YYYY-MM-DD).")
	scrapeTo = scrapeCmd.Flags().String("to", "", "Last day of the scrape window (YYYY-MM-DD).")
	scrapeDays = scrapeCmd.Flags().Int("days", 7, "Days to scrape starting today, ignored when --from/--to are set.")
	scrapeDb = scrapeCmd.Flags().String("db", "results.db", "The database to write scrape results to.")
	scrapeMaster = scrapeCmd.Flags().String("master", "master.csv", "The master csv updated by --update-master.")
	scrapeUpdate = scrapeCmd.Flags().Bool("update-master", false, "Merge the scraped films into the master csv.")
	rootCmd.AddCommand(scrapeCmd)
}

func scrapeWindow() (theaters.DateRange, error) {
	if *scrapeFrom != "" || *scrapeTo != "" {
		if *scrapeFrom == "" || *scrapeTo == "" {
			return theaters.DateRange{}, fmt.Errorf("--from and --to must be set together")
		}
		start, err := time.ParseInLocation(records.DateLayout, *scrapeFrom, timezone.Location)
		if err != nil {
			return theaters.DateRange{}, fmt.Errorf("invalid --from: %w", err)
		}
		end, err := time.ParseInLocation(records.DateLayout, *scrapeTo, timezone.Location)
		if err != nil {
			return theaters.DateRange{}, fmt.Errorf("invalid --to: %w", err)
		}
		if end.Before(start) {
			return theaters.DateRange{}, fmt.Errorf("--to is before --from")
		}
		return theaters.DateRange{Start: start, End: end}, nil
	}

	if *scrapeDays < 1 {
		return theaters.DateRange{}, fmt.Errorf("--days must be at least 1")
	}
	start := timezone.Today()
	return theaters.DateRange{Start: start, End: start.AddDate(0, 0, *scrapeDays-1)}, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--theaters <key,...>] [--from <date> --to <date> | --days <n>]",
	Short: "Scrapes theater programmes and writes the results to a database.",
	Run: func(cmd *cobra.Command, args []string) {
		window, err := scrapeWindow()
		if err != nil {
			serviceutil.Fatal("invalid scrape window", err)
		}

		client := theaters.NewClient(restyutil.NewFilesystemOutput(".dev/resty/theaters"))
		result, err := scraper.Run(cmd.Context(), client, scraper.Options{
			Theaters: *scrapeTheaters,
			Window:   window,
		})
		if err != nil {
			serviceutil.Fatal("failed to scrape", err)
		}

		out, err := store.OpenResults(*scrapeDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer out.Close()

		scrapedAt := timezone.Now()
		for _, tr := range result.Theaters {
			if tr.Err != nil {
				continue
			}
			err := out.SaveRun(cmd.Context(), tr.Key, tr.Name, scrapedAt, tr.Films)
			if err != nil {
				serviceutil.Fatal("failed to save scrape results", err)
			}
		}

		if *scrapeUpdate {
			err := updateMaster(*scrapeMaster, result.Films)
			if err != nil {
				serviceutil.Fatal("failed to update master csv", err)
			}
		}

		fmt.Println(result.Summary())
	},
}
