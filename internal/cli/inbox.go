package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/model"
)

// InboxOptions holds flags for the inbox command.
type InboxOptions struct {
	ViewerOptions
	Limit    int
	MarkRead bool
}

// InboxResult is the JSON payload of the inbox command.
type InboxResult struct {
	UnreadNotifications int                  `json:"unread_notifications"`
	UnreadMessages      int                  `json:"unread_messages"`
	Notifications       []model.Notification `json:"notifications"`
}

// NewInboxCommand creates the inbox command.
func NewInboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InboxOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List notifications and unread counters",
		Long: `List the viewer's latest likes, comments and follows together with the
unread notification and message counters. --mark-read marks likes,
comments and follows as read afterwards.

Example:
  fitsync inbox --as bob
  fitsync inbox --as bob --mark-read`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInbox(opts, cmd)
		},
	}
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum notifications to list")
	cmd.Flags().BoolVar(&opts.MarkRead, "mark-read", false, "mark notifications read after listing")

	return cmd
}

func runInbox(opts *InboxOptions, cmd *cobra.Command) error {
	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	s, err := a.OpenSession(ctx, opts.As)
	if err != nil {
		return f.Fail("failed to open session", err)
	}
	defer s.Close()

	list, err := a.Store.ListNotifications(ctx, opts.As, opts.Limit)
	if err != nil {
		return f.Fail("failed to list notifications", err)
	}
	result := InboxResult{
		UnreadNotifications: s.Counters.UnreadNotifications(),
		UnreadMessages:      s.Counters.UnreadMessages(),
		Notifications:       list,
	}

	if opts.MarkRead {
		if err := s.Counters.MarkNotificationsRead(ctx); err != nil {
			return f.Fail("failed to mark notifications read", err)
		}
	}
	return f.Result(result, formatInbox(result))
}

func formatInbox(r InboxResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "unread: %d notifications, %d messages", r.UnreadNotifications, r.UnreadMessages)
	for _, n := range r.Notifications {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(&b, "\n%s %s  %-8s from %s", mark, n.CreatedAt.UTC().Format(time.DateTime), n.Type, n.ActorID)
		if n.SessionID != "" {
			fmt.Fprintf(&b, " on %s", n.SessionID)
		}
	}
	return b.String()
}
