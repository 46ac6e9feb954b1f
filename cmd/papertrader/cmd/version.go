package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the papertrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "papertrader version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Paper trade lifecycle engine for intraday signals")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
