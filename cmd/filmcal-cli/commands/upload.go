package commands

import (
	"log/slog"

	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/services/filmcal/store"

	"github.com/spf13/cobra"
)

var (
	uploadMaster *string
	uploadClear  *bool
)

func init() {
	uploadMaster = uploadCmd.Flags().String("master", "master.csv", "The master csv to upload.")
	uploadClear = uploadCmd.Flags().Bool("clear", false, "Drop existing rows before uploading.")
	rootCmd.AddCommand(uploadCmd)
}

var uploadCmd = &cobra.Command{
	Use:   "upload [--master <path/to/master.csv>] [--clear]",
	Short: "Uploads the master csv to the configured website database.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		films, err := store.ReadMaster(*uploadMaster)
		if err != nil {
			serviceutil.Fatal("failed to read master csv", err)
		}

		db, err := cfg.Upload.OpenDB()
		if err != nil {
			serviceutil.Fatal("failed to open upload database", err)
		}
		defer db.Close()

		stats, err := store.Upload(cmd.Context(), db, films, *uploadClear)
		if err != nil {
			serviceutil.Fatal("failed to upload films", err)
		}
		slog.Info(
			"uploaded master csv",
			"new_films", stats.NewFilms,
			"screenings", stats.Screenings,
			"skipped", stats.Skipped,
		)
	},
}
