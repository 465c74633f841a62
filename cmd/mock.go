package cmd

import (
	"github.com/spf13/cobra"

	"bcstcp/internal/logger"
	"bcstcp/internal/mockserver"
)

var (
	mockAddr      string
	mockScanPolls int
	mockReply     string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a mock command server for local testing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.WithComponent("mock")
		srv := mockserver.New(mockserver.Config{
			Addr:         mockAddr,
			DefaultReply: mockReply,
			ScanPolls:    mockScanPolls,
			Logger:       &l,
		})
		logger.Info().Msgf("mock server on %s, %d running-scan polls", mockAddr, mockScanPolls)
		return srv.ListenAndServe()
	},
}

func init() {
	mockCmd.Flags().StringVar(&mockAddr, "addr", ":8888", "listen address")
	mockCmd.Flags().IntVar(&mockScanPolls, "scan-polls", 0, "RunningScan polls that report a running scan")
	mockCmd.Flags().StringVar(&mockReply, "default-reply", "OK", "reply for commands without a handler")

	rootCmd.AddCommand(mockCmd)
}
