package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"qsync/internal/reconcile"
)

type watchOptions struct {
	*rootOptions
	Refetch    time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
}

func newWatchCommand(root *rootOptions) *cobra.Command {
	opts := &watchOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the local session in sync until interrupted",
		Long: `Restore the local session, then hold the push stream open and refetch
every record kind periodically and after each reconnect. The session is
saved after every refetch and on exit.

Example:
  syncctl watch --server http://localhost:8080 --refetch 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().DurationVar(&opts.Refetch, "refetch", time.Minute, "interval between full refetches")
	cmd.Flags().DurationVar(&opts.BackoffMin, "backoff-min", 500*time.Millisecond, "first reconnect delay")
	cmd.Flags().DurationVar(&opts.BackoffMax, "backoff-max", 30*time.Second, "longest reconnect delay")
	return cmd
}

func runWatch(ctx context.Context, opts *watchOptions, out, errOut io.Writer) error {
	log := opts.logger(errOut)
	p := printer{w: out, format: opts.Format}

	session := opts.session(log, reconcile.WithNotificationHandler(func(payload json.RawMessage) {
		p.line("notification", string(payload))
	}))
	syncer := reconcile.NewSyncer(opts.client(), session,
		reconcile.WithRefetchInterval(opts.Refetch),
		reconcile.WithBackoff(opts.BackoffMin, opts.BackoffMax),
		reconcile.WithSyncerLogger(log),
		reconcile.WithSyncHook(func(kind reconcile.Kind, n int) {
			p.line("synced", fmt.Sprintf("%s=%d", kind, n))
		}),
	)
	return syncer.Run(ctx)
}

// printer writes one event per line as text or JSON.
type printer struct {
	w      io.Writer
	format string
}

func (p printer) line(kind, detail string) {
	if p.format == "json" {
		b, _ := json.Marshal(map[string]string{"type": kind, "detail": detail, "at": time.Now().UTC().Format(time.RFC3339)})
		fmt.Fprintln(p.w, string(b))
		return
	}
	fmt.Fprintf(p.w, "%s %-12s %s\n", time.Now().Format("15:04:05"), kind, detail)
}
