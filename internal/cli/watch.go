package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/app"
	"github.com/roach88/fitsync/internal/realtime"
)

// CountersResult is the JSON payload reported by watch.
type CountersResult struct {
	Viewer              string `json:"viewer"`
	UnreadNotifications int    `json:"unread_notifications"`
	UnreadMessages      int    `json:"unread_messages"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a user's unread counters live",
		Long: `Subscribe to the viewer's notifications and print a toast for every new
like, comment, follow or message until interrupted. The cache sweeper
runs in the background and, when metrics.addr is set, /metrics and
/health are served.

Example:
  fitsync watch --as bob
  FITSYNC_METRICS_ADDR=:9090 fitsync watch --as bob --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}
	addViewerFlag(cmd, opts)

	return cmd
}

func runWatch(opts *ViewerOptions, cmd *cobra.Command) error {
	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Toasts arrive on the realtime consumer goroutine.
	var mu sync.Mutex
	toaster := realtime.ToasterFunc(func(t realtime.Toast) {
		mu.Lock()
		defer mu.Unlock()
		_ = f.Result(t, "> "+t.Text)
	})

	s, err := a.OpenSession(ctx, opts.As, app.WithToaster(toaster))
	if err != nil {
		return f.Fail("failed to open session", err)
	}
	defer s.Close()

	report := func(prefix string) {
		mu.Lock()
		defer mu.Unlock()
		r := CountersResult{
			Viewer:              s.Viewer().Username,
			UnreadNotifications: s.Counters.UnreadNotifications(),
			UnreadMessages:      s.Counters.UnreadMessages(),
		}
		_ = f.Result(r, fmt.Sprintf("%s @%s: %d unread notifications, %d unread messages",
			prefix, r.Viewer, r.UnreadNotifications, r.UnreadMessages))
	}

	report("watching")
	slog.Info("watch started", "viewer", opts.As, "metrics_addr", a.Config.Metrics.Addr)

	if err := a.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "metrics listener failed", err)
	}

	report("stopped")
	slog.Info("watch stopped gracefully")
	return nil
}
