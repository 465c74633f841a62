package cmd

import (
	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Send ListCommands and print the reply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		return conn.Test(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
