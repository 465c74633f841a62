package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bcstcp/internal/config"
	"bcstcp/internal/logger"
	"bcstcp/pkg/connection"
)

var (
	cfgFile  string
	host     string
	port     int
	timeout  time.Duration
	logLevel string

	cfg = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "bcstcp",
	Short: "Client for line-based TCP command servers",
	Long: `bcstcp sends Name(arg1,arg2,...) commands to a TCP command server and
prints the raw reply. It can also poll RunningScan until a scan finishes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 命令行参数优先于配置文件和环境变量
		flags := cmd.Flags()
		if flags.Changed("host") {
			loaded.Host = host
		}
		if flags.Changed("port") {
			loaded.Port = port
		}
		if flags.Changed("timeout") {
			loaded.Timeout = timeout
		}
		if flags.Changed("log-level") {
			loaded.Level = logLevel
		}

		logger.Init(loaded.Level)
		cfg = loaded
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "path to an INI config file")
	pf.StringVar(&host, "host", "127.0.0.1", "command server host")
	pf.IntVar(&port, "port", 8888, "command server port")
	pf.DurationVar(&timeout, "timeout", 5*time.Second, "per-operation read/write timeout (0 disables)")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Str("command", commandPath()).Msg("command failed")
		os.Exit(1)
	}
}

func commandPath() string {
	c, _, err := rootCmd.Find(os.Args[1:])
	if err != nil || c == nil {
		return rootCmd.Name()
	}
	return c.CommandPath()
}

func openConnection(ctx context.Context, extra ...connection.Option) (*connection.TCPConnection, error) {
	opts := []connection.Option{
		connection.WithLogger(logger.WithComponent("connection")),
		connection.WithPollInterval(cfg.PollInterval),
	}
	return connection.Open(ctx, cfg.Host, cfg.Port, cfg.Timeout, append(opts, extra...)...)
}
