package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/derive"
	"github.com/roach88/fitsync/internal/model"
)

// SessionOptions holds the flags shared by session add and session edit.
type SessionOptions struct {
	ViewerOptions
	Title     string
	Date      string
	Feeling   int
	Tags      []string
	Notes     string
	Exercises []string
}

// SessionDetail is the JSON payload of session show.
type SessionDetail struct {
	Session  model.Session        `json:"session"`
	Likes    int                  `json:"likes"`
	Comments []model.Comment      `json:"comments"`
	Photos   []model.SessionPhoto `json:"photos"`
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Log, edit, remove or show journal entries",
	}
	cmd.AddCommand(newSessionAddCommand(rootOpts))
	cmd.AddCommand(newSessionEditCommand(rootOpts))
	cmd.AddCommand(newSessionRemoveCommand(rootOpts))
	cmd.AddCommand(newSessionShowCommand(rootOpts))
	return cmd
}

func addSessionFlags(cmd *cobra.Command, opts *SessionOptions) {
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "session title")
	cmd.Flags().StringVarP(&opts.Date, "date", "d", "", "calendar date YYYY-MM-DD (default: current date)")
	cmd.Flags().IntVar(&opts.Feeling, "feeling", 0, "how it felt, 1-5 (0: not recorded)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag, repeatable")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringArrayVarP(&opts.Exercises, "exercise", "e", nil, `exercise as "NAME[:SETSxREPS][@WEIGHT]", repeatable`)
}

func newSessionAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a training session",
		Long: `Log a training session in the viewer's journal. The date defaults to
today. Exercises are given as NAME[:SETSxREPS][@WEIGHT].

Example:
  fitsync session add --as alice --title "Squat day" -e "Back squat:5x5@120" --tag legs
  fitsync session add --as alice --title "Rest walk" --date 2024-03-09 --feeling 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionAdd(opts, cmd)
		},
	}
	addSessionFlags(cmd, opts)
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runSessionAdd(opts *SessionOptions, cmd *cobra.Command) error {
	var s model.Session
	if err := opts.apply(cmd, &s); err != nil {
		return err
	}
	if s.Date.IsZero() {
		y, m, d := opts.Now().Date()
		s.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	s.UserID = opts.As

	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	saved, err := a.Writer.AddSession(commandContext(cmd), s)
	if err != nil {
		return f.Fail("failed to add session", err)
	}
	return f.Result(saved, fmt.Sprintf("added %s: %s  %s", saved.ID, saved.Date.Format(time.DateOnly), sessionSummary(saved)))
}

func newSessionEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "edit <session-id>",
		Short: "Change a session you own",
		Long: `Change the fields of a session owned by the viewer. Only the flags given
are changed; --exercise replaces the whole exercise list.

Example:
  fitsync session edit <id> --as alice --title "Heavy squat day"
  fitsync session edit <id> --as alice -e "Back squat:5x3@140" -e "Lunge:3x10"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionEdit(opts, args[0], cmd)
		},
	}
	addSessionFlags(cmd, opts)

	return cmd
}

func runSessionEdit(opts *SessionOptions, sessionID string, cmd *cobra.Command) error {
	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	s, err := a.Store.GetSession(ctx, sessionID)
	if err != nil {
		return f.Fail("failed to load session", err)
	}
	if err := opts.apply(cmd, &s); err != nil {
		return err
	}
	s.UserID = opts.As

	saved, err := a.Writer.UpdateSession(ctx, s)
	if err != nil {
		return f.Fail("failed to update session", err)
	}
	return f.Result(saved, fmt.Sprintf("updated %s: %s  %s", saved.ID, saved.Date.Format(time.DateOnly), sessionSummary(saved)))
}

// apply copies the flags set on cmd into s.
func (o *SessionOptions) apply(cmd *cobra.Command, s *model.Session) error {
	flags := cmd.Flags()
	if flags.Changed("title") {
		if strings.TrimSpace(o.Title) == "" {
			return NewExitError(ExitCommandError, "--title must not be empty")
		}
		s.Title = o.Title
	}
	if flags.Changed("date") {
		d, err := derive.ParseDate(o.Date)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --date", err)
		}
		s.Date = d
	}
	if flags.Changed("feeling") {
		if o.Feeling < 0 || o.Feeling > 5 {
			return NewExitError(ExitCommandError, "--feeling must be between 1 and 5")
		}
		s.Feeling = o.Feeling
	}
	if flags.Changed("tag") {
		s.Tags = o.Tags
	}
	if flags.Changed("notes") {
		s.Notes = o.Notes
	}
	if flags.Changed("exercise") {
		exercises := make([]model.Exercise, 0, len(o.Exercises))
		for _, raw := range o.Exercises {
			ex, err := parseExercise(raw)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --exercise", err)
			}
			exercises = append(exercises, ex)
		}
		s.Exercises = exercises
	}
	return nil
}

// parseExercise reads "NAME[:SETSxREPS][@WEIGHT]".
func parseExercise(raw string) (model.Exercise, error) {
	var ex model.Exercise
	rest := strings.TrimSpace(raw)

	if i := strings.LastIndexByte(rest, '@'); i >= 0 {
		w, err := strconv.ParseFloat(strings.TrimSpace(rest[i+1:]), 64)
		if err != nil || w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return ex, fmt.Errorf("%q: weight must be a non-negative number", raw)
		}
		ex.Weight = w
		rest = rest[:i]
	}
	if i := strings.LastIndexByte(rest, ':'); i >= 0 {
		sets, reps, ok := strings.Cut(strings.ToLower(strings.TrimSpace(rest[i+1:])), "x")
		if !ok {
			return ex, fmt.Errorf("%q: expected SETSxREPS after ':'", raw)
		}
		var err error
		if ex.Sets, err = strconv.Atoi(sets); err != nil || ex.Sets < 0 {
			return ex, fmt.Errorf("%q: sets must be a non-negative integer", raw)
		}
		if ex.Reps, err = strconv.Atoi(reps); err != nil || ex.Reps < 0 {
			return ex, fmt.Errorf("%q: reps must be a non-negative integer", raw)
		}
		rest = rest[:i]
	}

	ex.Name = strings.TrimSpace(rest)
	if ex.Name == "" {
		return ex, fmt.Errorf("%q: name is required", raw)
	}
	return ex, nil
}

func newSessionRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rm <session-id>",
		Short: "Delete a session you own",
		Long: `Delete a session owned by the viewer together with its exercises,
likes, comments and photos.

Example:
  fitsync session rm <id> --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, f, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Writer.DeleteSession(commandContext(cmd), args[0], opts.As); err != nil {
				return f.Fail("failed to delete session", err)
			}
			return f.Result(map[string]string{"deleted": args[0]}, "deleted "+args[0])
		},
	}
	addViewerFlag(cmd, opts)

	return cmd
}

func newSessionShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session with its likes, comments and photos",
		Long: `Show one session with its exercises. Likes, comments and photos are read
live from the database.

Example:
  fitsync session show <id>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionShow(rootOpts, args[0], cmd)
		},
	}
}

func runSessionShow(opts *RootOptions, sessionID string, cmd *cobra.Command) error {
	a, f, err := opts.openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := commandContext(cmd)
	s, err := a.Reader.Session(ctx, sessionID)
	if err != nil {
		return f.Fail("failed to load session", err)
	}
	likes, err := a.Reader.Likes(ctx, sessionID)
	if err != nil {
		return f.Fail("failed to load likes", err)
	}
	comments, err := a.Reader.Comments(ctx, sessionID)
	if err != nil {
		return f.Fail("failed to load comments", err)
	}
	photos, err := a.Reader.SessionPhotos(ctx, sessionID)
	if err != nil {
		return f.Fail("failed to load photos", err)
	}

	detail := SessionDetail{Session: s, Likes: len(likes), Comments: comments, Photos: photos}
	return f.Result(detail, formatSessionDetail(detail))
}

func formatSessionDetail(d SessionDetail) string {
	var b strings.Builder
	s := d.Session
	fmt.Fprintf(&b, "%s  %s by %s", s.Date.Format(time.DateOnly), sessionSummary(s), s.UserID)
	if s.Feeling > 0 {
		fmt.Fprintf(&b, ", feeling %d/5", s.Feeling)
	}
	for _, ex := range s.Exercises {
		fmt.Fprintf(&b, "\n  %s", formatExercise(ex))
	}
	if s.Notes != "" {
		fmt.Fprintf(&b, "\n  notes: %s", s.Notes)
	}
	fmt.Fprintf(&b, "\n%d %s, %d %s, %d %s", d.Likes, plural(d.Likes, "like", "likes"),
		len(d.Comments), plural(len(d.Comments), "comment", "comments"),
		len(d.Photos), plural(len(d.Photos), "photo", "photos"))
	for _, c := range d.Comments {
		fmt.Fprintf(&b, "\n  %s: %s", c.UserID, c.Content)
	}
	return b.String()
}

func formatExercise(ex model.Exercise) string {
	out := ex.Name
	if ex.Sets > 0 || ex.Reps > 0 {
		out += fmt.Sprintf(" %dx%d", ex.Sets, ex.Reps)
	}
	if ex.Weight > 0 {
		out += " @ " + strconv.FormatFloat(ex.Weight, 'f', -1, 64)
	}
	return out
}

// sessionSummary renders the title, exercise count and tags of s.
func sessionSummary(s model.Session) string {
	out := s.Title
	if n := len(s.Exercises); n > 0 {
		out += fmt.Sprintf(" (%d %s)", n, plural(n, "exercise", "exercises"))
	}
	if len(s.Tags) > 0 {
		out += " #" + strings.Join(s.Tags, " #")
	}
	return out
}
