package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"whalewatch/internal/app"
)

var (
	showLimit   int
	showChannel string

	tailLimit    int
	tailChannel  string
	tailInterval time.Duration
	tailMaxPolls int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent whale activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:     showLimit,
			ChannelID: showChannel,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Poll for new whale activity and print it as it arrives",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		if tailInterval > 0 {
			a.Config.Tail.Interval = tailInterval
		}
		return a.Tail(cmd.Context(), app.TailOptions{
			Limit:     tailLimit,
			ChannelID: tailChannel,
			MaxPolls:  tailMaxPolls,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of whale buys to display")
	showCmd.Flags().StringVar(&showChannel, "channel", "", "Only show alerts from this channel")

	tailCmd.Flags().IntVar(&tailLimit, "limit", 50, "Number of recent whale buys fetched per poll")
	tailCmd.Flags().StringVar(&tailChannel, "channel", "", "Only show alerts from this channel")
	tailCmd.Flags().DurationVar(&tailInterval, "interval", 0, "Poll interval (defaults to config)")
	tailCmd.Flags().IntVar(&tailMaxPolls, "max-polls", 0, "Stop after this many polls (0 polls forever)")
}
