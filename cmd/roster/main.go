// Command roster fetches the per-user article roster from a Conduit API and
// renders it as a table.
//
// Usage:
//
//	roster --server http://localhost:8080
//	roster --plain > roster.txt
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"conduit/internal/config"
	"conduit/internal/presenter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		server  string
		plain   bool
		timeout time.Duration
		logFile string
	)

	cmd := &cobra.Command{
		Use:           "roster",
		Short:         "Show per-user article statistics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				server = cfg.Client.BaseURL
			}

			logger := logrus.New()
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			logger.SetOutput(cmd.ErrOrStderr())

			client := presenter.NewClient(server, timeout)
			ctx := cmd.Context()

			interactive := !plain && term.IsTerminal(int(os.Stdout.Fd()))
			if !interactive {
				return presenter.LoadAndRender(ctx, client, cmd.OutOrStdout(), logger)
			}

			// stderr would tear the TUI, so diagnostics go to a file
			f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				logger.SetOutput(io.Discard)
			} else {
				defer f.Close()
				logger.SetOutput(f)
			}

			_, err = tea.NewProgram(presenter.NewModel(ctx, client, logger), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "API base URL (default from CONDUIT_CLIENT_BASEURL)")
	cmd.Flags().BoolVar(&plain, "plain", false, "print the table once instead of opening the interactive view")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	cmd.Flags().StringVar(&logFile, "log-file", "roster.log", "diagnostics file for the interactive view")
	return cmd
}

