package commands

import (
	"os"

	"filmcalendar-backend/lib/scrapers/theaters"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(theatersCmd)
}

var theatersCmd = &cobra.Command{
	Use:   "theaters",
	Short: "Lists the supported theaters.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Key", "Name", "Update"})
		for _, s := range theaters.All(nil) {
			t.AppendRow(table.Row{s.Key(), s.Name(), s.UpdatePeriod()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
