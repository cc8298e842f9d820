package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/store"
)

// ProfileOptions holds flags for profile put.
type ProfileOptions struct {
	ViewerOptions
	DisplayName string
	Bio         string
	Sport       string
}

// ProfileView is the JSON payload of profile show.
type ProfileView struct {
	Profile   model.Profile          `json:"profile"`
	Followers int                    `json:"followers"`
	Following int                    `json:"following"`
	Streak    int                    `json:"streak"`
	Palmares  []model.Palmares       `json:"palmares"`
	Records   []model.PersonalRecord `json:"records"`
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Create, update or show profiles",
	}
	cmd.AddCommand(newProfilePutCommand(rootOpts))
	cmd.AddCommand(newProfileShowCommand(rootOpts))
	return cmd
}

func newProfilePutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfileOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "put <username>",
		Short: "Create or update the viewer's profile",
		Long: `Create the profile of the user given with --as, or update it. Fields not
given on an existing profile are kept. Usernames are stored NFC-normalized.

Example:
  fitsync profile put alice --as alice --display-name "Alice Martin" --sport powerlifting`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfilePut(opts, args[0], cmd)
		},
	}
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().StringVar(&opts.DisplayName, "display-name", "", "name shown instead of the username")
	cmd.Flags().StringVar(&opts.Bio, "bio", "", "short biography")
	cmd.Flags().StringVar(&opts.Sport, "sport", "", "main sport")

	return cmd
}

func runProfilePut(opts *ProfileOptions, username string, cmd *cobra.Command) error {
	if strings.TrimSpace(username) == "" {
		return NewExitError(ExitCommandError, "username must not be empty")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	p, err := a.Store.GetProfileByID(ctx, opts.As)
	if errors.Is(err, store.ErrNotFound) {
		p = model.Profile{ID: opts.As}
	} else if err != nil {
		return f.Fail("failed to load profile", err)
	}

	p.Username = username
	flags := cmd.Flags()
	if flags.Changed("display-name") {
		p.DisplayName = opts.DisplayName
	}
	if flags.Changed("bio") {
		p.Bio = opts.Bio
	}
	if flags.Changed("sport") {
		p.Sport = opts.Sport
	}

	saved, err := a.Writer.UpdateProfile(ctx, p)
	if err != nil {
		return f.Fail("failed to save profile", err)
	}
	return f.Result(saved, fmt.Sprintf("saved @%s (%s)", saved.Username, saved.ID))
}

func newProfileShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <username>",
		Short: "Show a profile with its records",
		Long: `Show a public profile with follow counts, the current streak, competition
results and personal records.

Example:
  fitsync profile show alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfileShow(rootOpts, args[0], cmd)
		},
	}
}

func runProfileShow(opts *RootOptions, username string, cmd *cobra.Command) error {
	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	p, err := a.Reader.Profile(ctx, username)
	if err != nil {
		return f.Fail("failed to load profile", err)
	}
	counts, err := a.Reader.FollowCounts(ctx, p.ID)
	if err != nil {
		return f.Fail("failed to load follow counts", err)
	}
	streak, err := a.Reader.Streak(ctx, p.ID, opts.Now())
	if err != nil {
		return f.Fail("failed to compute streak", err)
	}
	palmares, err := a.Reader.Palmares(ctx, p.ID)
	if err != nil {
		return f.Fail("failed to load palmares", err)
	}
	records, err := a.Reader.PersonalRecords(ctx, p.ID)
	if err != nil {
		return f.Fail("failed to load records", err)
	}

	view := ProfileView{
		Profile:   p,
		Followers: counts.Followers,
		Following: counts.Following,
		Streak:    streak,
		Palmares:  palmares,
		Records:   records,
	}
	return f.Result(view, formatProfile(view))
}

func formatProfile(v ProfileView) string {
	var b strings.Builder
	p := v.Profile
	b.WriteString("@" + p.Username)
	if p.DisplayName != "" {
		fmt.Fprintf(&b, " (%s)", p.DisplayName)
	}
	if p.Sport != "" {
		b.WriteString(" " + p.Sport)
	}
	if p.Bio != "" {
		b.WriteString("\n" + p.Bio)
	}
	fmt.Fprintf(&b, "\n%d %s, %d following, %d day streak", v.Followers,
		plural(v.Followers, "follower", "followers"), v.Following, v.Streak)
	for _, r := range v.Palmares {
		fmt.Fprintf(&b, "\n  %s", formatPalmares(r))
	}
	for _, r := range v.Records {
		fmt.Fprintf(&b, "\n  %s", formatRecord(r))
	}
	return b.String()
}

func formatPalmares(p model.Palmares) string {
	out := strings.TrimSpace(p.Year + " " + p.Competition)
	if p.Category != "" {
		out += " " + p.Category
	}
	out += ": " + p.Result
	if p.Federation != "" {
		out += " (" + p.Federation + ")"
	}
	return out
}

func formatRecord(r model.PersonalRecord) string {
	out := fmt.Sprintf("%s %s %s", r.Lift, strconv.FormatFloat(r.Weight, 'f', -1, 64), r.Unit)
	if r.Validated {
		out += " (validated)"
	}
	return out
}

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Limit int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find profiles by username or display name",
		Long: `List profiles whose username or display name contains the query,
ignoring case, ordered by username.

Example:
  fitsync search ali
  fitsync search "alice m" --limit 5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], cmd)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum profiles to list")

	return cmd
}

func runSearch(opts *SearchOptions, query string, cmd *cobra.Command) error {
	if opts.Limit < 1 {
		return NewExitError(ExitCommandError, "--limit must be at least 1")
	}

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	found, err := a.Reader.SearchProfiles(commandContext(cmd), query, opts.Limit)
	if err != nil {
		return f.Fail("search failed", err)
	}
	if len(found) == 0 {
		return f.Result(found, "no profiles")
	}

	lines := make([]string, len(found))
	for i, p := range found {
		lines[i] = "@" + p.Username
		if p.DisplayName != "" {
			lines[i] += "  " + p.DisplayName
		}
	}
	return f.Result(found, strings.Join(lines, "\n"))
}
