package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"bcstcp/pkg/connection"
)

var callLenient bool

var callCmd = &cobra.Command{
	Use:   "call NAME [ARGS...]",
	Short: "Call a remote command and print its reply",
	Long: `Call sends NAME(ARGS...) and prints the reply. Underscores in NAME are
sent as spaces, so Set_Scan_Mode 2 sends "Set Scan Mode(2)". With --lenient
a failed or timed-out read prints an empty reply instead of failing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []connection.Option
		if callLenient {
			opts = append(opts, connection.WithLenientReads())
		}
		conn, err := openConnection(cmd.Context(), opts...)
		if err != nil {
			return err
		}
		defer conn.Close()

		reply, err := conn.Call(args[0], toAny(args[1:])...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply)
		return nil
	},
}

func init() {
	callCmd.Flags().BoolVar(&callLenient, "lenient", false, "print an empty reply when the read fails")
	rootCmd.AddCommand(callCmd)
}

func toAny(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}
