package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bcstcp/pkg/connection"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the client version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), connection.ClientVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
