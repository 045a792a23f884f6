package commands

import (
	"log/slog"

	"filmcalendar-backend/lib/restyutil"
	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/services/filmcal/letterboxd"
	"filmcalendar-backend/services/filmcal/store"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
)

var rateMaster *string

func init() {
	rateMaster = rateCmd.Flags().String("master", "master.csv", "The master csv to rate.")
	rootCmd.AddCommand(rateCmd)
}

var rateCmd = &cobra.Command{
	Use:   "rate [--master <path/to/master.csv>]",
	Short: "Backfills letterboxd ratings and links on the master csv.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		films, err := store.ReadMaster(*rateMaster)
		if err != nil {
			serviceutil.Fatal("failed to read master csv", err)
		}

		var opts letterboxd.ClientOptions
		if cfg.PageCache != "" {
			cache, err := badger.Open(badger.DefaultOptions(cfg.PageCache))
			if err != nil {
				serviceutil.Fatal("failed to open page cache", err)
			}
			defer cache.Close()
			opts.Cache = cache
		}

		client := letterboxd.NewClient(restyutil.NewFilesystemOutput(".dev/resty/letterboxd"), opts)
		rated, err := client.Rate(cmd.Context(), films)
		if err != nil {
			serviceutil.Fatal("failed to rate films", err)
		}

		store.SortByRating(rated)
		err = store.WriteMaster(*rateMaster, rated)
		if err != nil {
			serviceutil.Fatal("failed to write master csv", err)
		}
		slog.Info("rated master csv", "path", *rateMaster, "films", len(rated))
	},
}
