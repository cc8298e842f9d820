package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/model"
)

// FeedOptions holds flags for the feed command.
type FeedOptions struct {
	*RootOptions
	Page int
}

// NewFeedCommand creates the feed command.
func NewFeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show a page of the community feed",
		Long: `Show the most recent sessions from every user, newest first.

Example:
  fitsync feed
  fitsync feed --page 2 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "page number, starting at 1")

	return cmd
}

func runFeed(opts *FeedOptions, cmd *cobra.Command) error {
	if opts.Page < 1 {
		return NewExitError(ExitCommandError, "--page must be at least 1")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	items, err := a.Reader.Feed(commandContext(cmd), opts.Page)
	if err != nil {
		return f.Fail("failed to load feed", err)
	}
	return f.Result(items, formatFeed(items))
}

func formatFeed(items []model.FeedItem) string {
	if len(items) == 0 {
		return "no sessions"
	}

	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		s := item.Session
		fmt.Fprintf(&b, "%s  @%-12s %s", s.Date.Format(time.DateOnly), item.Author.Username, sessionSummary(s))
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
