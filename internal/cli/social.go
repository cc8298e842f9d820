package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/model"
)

// ViewerOptions holds the flags of commands acting as a signed-in user.
type ViewerOptions struct {
	*RootOptions
	As string
}

func addViewerFlag(cmd *cobra.Command, opts *ViewerOptions) {
	cmd.Flags().StringVar(&opts.As, "as", "", "ID of the user performing the action (required)")
	_ = cmd.MarkFlagRequired("as")
}

// FollowResult is the JSON payload of the follow command.
type FollowResult struct {
	Viewer    string `json:"viewer"`
	Target    string `json:"target"`
	Following bool   `json:"following"`
	Followers int    `json:"followers"`
}

// NewFollowCommand creates the follow command.
func NewFollowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "follow <username>",
		Short: "Follow or unfollow a user",
		Long: `Toggle whether the viewer follows a user. The change is applied locally,
written to the database, and rolled back if the write fails.

Example:
  fitsync follow bob --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollow(opts, args[0], cmd)
		},
	}
	addViewerFlag(cmd, opts)

	return cmd
}

func runFollow(opts *ViewerOptions, username string, cmd *cobra.Command) error {
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

	op, err := s.Follow(ctx, username)
	if err != nil {
		return f.Fail("follow failed", err)
	}
	if err := op.Wait(ctx); err != nil {
		return f.Fail("follow failed", err)
	}

	target, err := a.Reader.Profile(ctx, username)
	if err != nil {
		return f.Fail("failed to load profile", err)
	}
	followers := s.Social.FollowerCountOr(target.ID, 0)

	verb := "unfollowed"
	if op.Value() {
		verb = "now follows"
	}
	text := fmt.Sprintf("@%s %s @%s (%d %s)", s.Viewer().Username, verb, target.Username,
		followers, plural(followers, "follower", "followers"))
	return f.Result(FollowResult{
		Viewer:    s.Viewer().Username,
		Target:    target.Username,
		Following: op.Value(),
		Followers: followers,
	}, text)
}

// LikeResult is the JSON payload of the like command.
type LikeResult struct {
	SessionID string `json:"session_id"`
	Liked     bool   `json:"liked"`
	Likes     int    `json:"likes"`
}

// NewLikeCommand creates the like command.
func NewLikeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "like <session-id>",
		Short: "Like or unlike a session",
		Long: `Toggle the viewer's like on a session. Liking someone else's session
notifies its owner.

Example:
  fitsync like 0190f1c2-7a1e-7c3b-9a55-2f4c1d3e5b6a --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLike(opts, args[0], cmd)
		},
	}
	addViewerFlag(cmd, opts)

	return cmd
}

func runLike(opts *ViewerOptions, sessionID string, cmd *cobra.Command) error {
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

	op, err := s.Like(ctx, sessionID)
	if err != nil {
		return f.Fail("like failed", err)
	}
	if err := op.Wait(ctx); err != nil {
		return f.Fail("like failed", err)
	}

	likes := s.Social.LikeCount(sessionID)
	verb := "unliked"
	if op.Value() {
		verb = "liked"
	}
	return f.Result(LikeResult{SessionID: sessionID, Liked: op.Value(), Likes: likes},
		fmt.Sprintf("%s session %s (%d %s)", verb, sessionID, likes, plural(likes, "like", "likes")))
}

// NewCommentCommand creates the comment command.
func NewCommentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "comment <session-id> <text>",
		Short: "Comment on a session",
		Long: `Post a comment on a session. Commenting on someone else's session
notifies its owner.

Example:
  fitsync comment <id> "solid depth" --as bob`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComment(opts, args[0], args[1], cmd)
		},
	}
	addViewerFlag(cmd, opts)

	return cmd
}

func runComment(opts *ViewerOptions, sessionID, text string, cmd *cobra.Command) error {
	if strings.TrimSpace(text) == "" {
		return NewExitError(ExitCommandError, "comment text must not be empty")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	c, err := a.Writer.AddComment(commandContext(cmd), model.Comment{
		SessionID: sessionID,
		UserID:    opts.As,
		Content:   text,
	})
	if err != nil {
		return f.Fail("comment failed", err)
	}
	return f.Result(c, fmt.Sprintf("commented on %s", sessionID))
}
