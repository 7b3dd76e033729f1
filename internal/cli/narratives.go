package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var narrativesLimit int

var narrativesCmd = &cobra.Command{
	Use:   "narratives",
	Short: "Inspect cached token narratives",
}

var narrativesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recently updated narratives",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().NarrativesList(cmd.Context(), narrativesLimit)
	},
}

var narrativesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search narratives by token name, or by address for long queries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().NarrativesSearch(cmd.Context(), strings.Join(args, " "), narrativesLimit)
	},
}

var narrativesGetCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Print the narrative stored for a token address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().NarrativesGet(cmd.Context(), args[0])
	},
}

func init() {
	narrativesCmd.PersistentFlags().IntVar(&narrativesLimit, "limit", 0, "Maximum narratives to return (defaults to config)")
	narrativesCmd.AddCommand(narrativesListCmd, narrativesSearchCmd, narrativesGetCmd)
}
