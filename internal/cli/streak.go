package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/derive"
)

// StreakOptions holds flags for the streak command.
type StreakOptions struct {
	*RootOptions
	Today string
}

// StreakResult is the JSON payload of the streak command.
type StreakResult struct {
	Username string `json:"username"`
	Today    string `json:"today"`
	Streak   int    `json:"streak"`
}

// NewStreakCommand creates the streak command.
func NewStreakCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StreakOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "streak <username>",
		Short: "Show a user's current training streak",
		Long: `Show the number of consecutive days, ending today or yesterday, on
which the user logged at least one session.

Example:
  fitsync streak alice
  fitsync streak alice --today 2024-03-10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStreak(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Today, "today", "", "reference date YYYY-MM-DD (default: current date)")

	return cmd
}

func runStreak(opts *StreakOptions, username string, cmd *cobra.Command) error {
	today := opts.Now()
	if opts.Today != "" {
		d, err := derive.ParseDate(opts.Today)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --today", err)
		}
		today = d
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	profile, err := a.Reader.Profile(ctx, username)
	if err != nil {
		return f.Fail("failed to load profile", err)
	}
	streak, err := a.Reader.Streak(ctx, profile.ID, today)
	if err != nil {
		return f.Fail("failed to compute streak", err)
	}

	result := StreakResult{Username: profile.Username, Today: today.Format(time.DateOnly), Streak: streak}
	return f.Result(result, fmt.Sprintf("@%s: %d day streak", profile.Username, streak))
}
