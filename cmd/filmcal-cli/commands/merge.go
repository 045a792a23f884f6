package commands

import (
	"errors"
	"log/slog"
	"os"

	"filmcalendar-backend/lib/records"
	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/services/filmcal/merge"
	"filmcalendar-backend/services/filmcal/store"

	"github.com/spf13/cobra"
)

var (
	mergeDb     *string
	mergeMaster *string
)

func init() {
	mergeDb = mergeCmd.Flags().String("db", "results.db", "The database to read scrape results from.")
	mergeMaster = mergeCmd.Flags().String("master", "master.csv", "The master csv to merge into.")
	rootCmd.AddCommand(mergeCmd)
}

// updateMaster folds freshly scraped films into the master csv, creating
// it when it does not exist yet.
func updateMaster(path string, films []records.Film) error {
	existing, err := store.ReadMaster(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	master := merge.Master(existing, merge.AsMaster(films))
	store.SortByRating(master)
	return store.WriteMaster(path, master)
}

var mergeCmd = &cobra.Command{
	Use:   "merge [--db <path/to/results.db>] [--master <path/to/master.csv>]",
	Short: "Merges saved scrape results into the master csv.",
	Run: func(cmd *cobra.Command, args []string) {
		results, err := store.OpenResults(*mergeDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer results.Close()

		runs, err := results.Theaters(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list saved theaters", err)
		}
		if len(runs) == 0 {
			serviceutil.Fatal("nothing to merge", errors.New("the database has no saved scrape results"))
		}

		var films []records.Film
		for _, run := range runs {
			saved, err := results.Films(cmd.Context(), run.Key)
			if err != nil {
				serviceutil.Fatal("failed to read scrape results", err)
			}
			slog.Info(
				"merging theater",
				"key", run.Key,
				"films", len(saved),
				"scraped_at", run.ScrapedAt.Format(records.DateLayout),
			)
			films = merge.Films(films, saved)
		}

		err = updateMaster(*mergeMaster, films)
		if err != nil {
			serviceutil.Fatal("failed to update master csv", err)
		}
		slog.Info("updated master csv", "path", *mergeMaster, "films", len(films))
	},
}
