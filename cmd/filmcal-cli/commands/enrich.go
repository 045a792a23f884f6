package commands

import (
	"errors"
	"log/slog"

	"filmcalendar-backend/lib/restyutil"
	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/services/filmcal/store"
	"filmcalendar-backend/services/filmcal/tmdb"

	"github.com/spf13/cobra"
)

var enrichMaster *string

func init() {
	enrichMaster = enrichCmd.Flags().String("master", "master.csv", "The master csv to enrich.")
	rootCmd.AddCommand(enrichCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich [--master <path/to/master.csv>]",
	Short: "Backfills tmdb metadata on the master csv.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		if cfg.TmdbApiKey == "" {
			serviceutil.Fatal("missing tmdb credential", errors.New("set tmdb_api_key in config.json5"))
		}

		films, err := store.ReadMaster(*enrichMaster)
		if err != nil {
			serviceutil.Fatal("failed to read master csv", err)
		}

		client := tmdb.NewClient(cfg.TmdbApiKey, restyutil.NewFilesystemOutput(".dev/resty/tmdb"))
		enriched, err := client.Enrich(cmd.Context(), films)
		if err != nil {
			serviceutil.Fatal("failed to enrich films", err)
		}

		store.SortByRating(enriched)
		err = store.WriteMaster(*enrichMaster, enriched)
		if err != nil {
			serviceutil.Fatal("failed to write master csv", err)
		}
		slog.Info("enriched master csv", "path", *enrichMaster, "films", len(enriched))
	},
}
