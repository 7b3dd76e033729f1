package cli

import (
	"github.com/spf13/cobra"

	"whalewatch/internal/app"
)

var (
	exportPNGPath   string
	exportCSVPath   string
	exportLimit     int
	exportChannel   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent whale activity as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			Limit:     exportLimit,
			ChannelID: exportChannel,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Number of recent whale buys to fetch (defaults to config)")
	exportCmd.Flags().StringVar(&exportChannel, "channel", "", "Only export alerts from this channel")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
