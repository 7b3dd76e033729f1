package cli

import (
	"github.com/spf13/cobra"

	"whalewatch/internal/app"
)

var (
	ingestText    string
	ingestAuthor  string
	ingestChannel string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Validate and store a single alert message",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Ingest(cmd.Context(), app.IngestOptions{
			Text:      ingestText,
			Author:    ingestAuthor,
			ChannelID: ingestChannel,
		})
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <address>",
	Short: "Report whether an address is a wallet or a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Classify(cmd.Context(), args[0])
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "Alert message text")
	ingestCmd.Flags().StringVar(&ingestAuthor, "author", "", "Reporting username (defaults to unknown)")
	ingestCmd.Flags().StringVar(&ingestChannel, "channel", "", "Source channel identifier")
	_ = ingestCmd.MarkFlagRequired("text")
}
