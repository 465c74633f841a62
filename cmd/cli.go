package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bcstcp/internal/logger"
	"bcstcp/pkg/connection"
)

var cliCmd = &cobra.Command{
	Use:   "cli",
	Short: "Start an interactive session with the command server",
	Long: `Each input line "Name arg1 arg2" is sent as Name(arg1,arg2).
Built-ins: test, wait [max], raw <line>, version, quit/exit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := openConnection(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		logger.Info().Str("addr", cfg.Addr()).Msg("connected to command server")
		return runREPL(cmd.Context(), conn, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(cliCmd)
}

// runREPL 读取输入行并执行，直到 quit/exit 或输入结束
func runREPL(ctx context.Context, conn connection.Connection, in io.Reader, out io.Writer) error {
	stdin := bufio.NewReader(in)

	for {
		fmt.Fprint(out, "> ")
		line, err := stdin.ReadString('\n')
		if err == io.EOF && strings.TrimSpace(line) == "" {
			fmt.Fprintln(out, "bye")
			return nil
		}
		if err != nil && err != io.EOF {
			fmt.Fprintln(out, "read input error:", err)
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			fmt.Fprintln(out, "bye")
			return nil
		}

		if err := execLine(ctx, conn, line, out); err != nil {
			fmt.Fprintln(out, "(error)", err)
		}
	}
}

func execLine(ctx context.Context, conn connection.Connection, line string, out io.Writer) error {
	args := splitArgs(line)
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "version":
		fmt.Fprintln(out, conn.Version())
		return nil

	case "test":
		return conn.Test(out)

	case "raw":
		if err := conn.Send(strings.TrimSpace(strings.TrimPrefix(line, "raw"))); err != nil {
			return err
		}
		fmt.Fprintln(out, conn.Read())
		return nil

	case "wait":
		maxIterations := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid iteration budget %q", args[1])
			}
			maxIterations = n
		}
		done, err := conn.WaitForScan(ctx, maxIterations)
		if err != nil {
			return err
		}
		if done {
			fmt.Fprintln(out, "scan finished")
		} else {
			fmt.Fprintln(out, "scan still running")
		}
		return nil
	}

	reply, err := conn.Call(args[0], toAny(args[1:])...)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply)
	return nil
}

func splitArgs(line string) []string {
	fields := strings.Fields(line)
	return fields
}
