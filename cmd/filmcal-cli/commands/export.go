package commands

import (
	"log/slog"

	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/services/filmcal/store"

	"github.com/spf13/cobra"
)

var (
	exportMaster *string
	exportOut    *string
)

func init() {
	exportMaster = exportCmd.Flags().String("master", "master.csv", "The master csv to export.")
	exportOut = exportCmd.Flags().String("out", "screenings.json", "The json file to write.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--master <path/to/master.csv>] [--out <path/to/screenings.json>]",
	Short: "Exports the master csv as json for the website.",
	Run: func(cmd *cobra.Command, args []string) {
		films, err := store.ReadMaster(*exportMaster)
		if err != nil {
			serviceutil.Fatal("failed to read master csv", err)
		}

		err = store.WriteExport(*exportOut, films)
		if err != nil {
			serviceutil.Fatal("failed to write export", err)
		}
		slog.Info("exported master csv", "out", *exportOut, "films", len(films))
	},
}
