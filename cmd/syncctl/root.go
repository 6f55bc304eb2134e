package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"qsync/internal/platform/logger"
	"qsync/internal/reconcile"
)

type rootOptions struct {
	Server  string
	Token   string
	State   string
	Format  string
	Verbose bool
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Headless qsync client",
		Long:  "Fetches and streams quality records from a qsync server into a local session file.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("QSYNC_SERVER", "http://127.0.0.1:8080"), "server base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("QSYNC_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.State, "state", ".qsync/session.json", "session snapshot file; empty disables persistence")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))
	return cmd
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return logger.NewWithWriter(w, level, "text")
}

func (o *rootOptions) client() *reconcile.Client {
	return reconcile.NewClient(o.Server, reconcile.WithToken(o.Token))
}

func (o *rootOptions) session(log *slog.Logger, extra ...reconcile.SessionOption) *reconcile.Session {
	opts := []reconcile.SessionOption{reconcile.WithSessionLogger(log)}
	if o.State != "" {
		opts = append(opts, reconcile.WithSnapshotStore(reconcile.NewFileSnapshotStore(o.State)))
	}
	return reconcile.NewSession(append(opts, extra...)...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
