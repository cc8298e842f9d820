package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fitsync/internal/model"
)

// PalmaresOptions holds flags for palmares add.
type PalmaresOptions struct {
	ViewerOptions
	model.Palmares
}

// NewPalmaresCommand creates the palmares command group.
func NewPalmaresCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "palmares",
		Short: "Record competition results",
	}
	cmd.AddCommand(newPalmaresAddCommand(rootOpts))
	return cmd
}

func newPalmaresAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PalmaresOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a competition result",
		Long: `Add a competition result to the viewer's palmares.

Example:
  fitsync palmares add --as alice --year 2023 --competition Nationals --category -63kg --result 1st --federation FFForce`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.Competition) == "" || strings.TrimSpace(opts.Result) == "" {
				return NewExitError(ExitCommandError, "--competition and --result must not be empty")
			}

			a, f, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			p := opts.Palmares
			p.UserID = opts.As
			saved, err := a.Writer.AddPalmares(commandContext(cmd), p)
			if err != nil {
				return f.Fail("failed to add palmares", err)
			}
			return f.Result(saved, "added "+formatPalmares(saved))
		},
	}
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().StringVar(&opts.Year, "year", "", "competition year")
	cmd.Flags().StringVar(&opts.Competition, "competition", "", "competition name (required)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "weight or age category")
	cmd.Flags().StringVar(&opts.Result, "result", "", "placing or result (required)")
	cmd.Flags().StringVar(&opts.Federation, "federation", "", "sanctioning federation")
	_ = cmd.MarkFlagRequired("competition")
	_ = cmd.MarkFlagRequired("result")

	return cmd
}

// RecordOptions holds flags for pr add.
type RecordOptions struct {
	ViewerOptions
	model.PersonalRecord
}

// NewRecordCommand creates the pr command group.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pr",
		Short: "Record personal bests",
	}
	cmd.AddCommand(newRecordAddCommand(rootOpts))
	return cmd
}

func newRecordAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{ViewerOptions: ViewerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a personal record",
		Long: `Add a best lift to the viewer's personal records. --validated marks a
lift made in competition.

Example:
  fitsync pr add --as alice --lift Squat --weight 180
  fitsync pr add --as alice --lift Deadlift --weight 500 --unit lb --validated`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.Lift) == "" {
				return NewExitError(ExitCommandError, "--lift must not be empty")
			}
			if opts.Weight <= 0 {
				return NewExitError(ExitCommandError, "--weight must be positive")
			}

			a, f, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			pr := opts.PersonalRecord
			pr.UserID = opts.As
			saved, err := a.Writer.AddPersonalRecord(commandContext(cmd), pr)
			if err != nil {
				return f.Fail("failed to add personal record", err)
			}
			return f.Result(saved, "added "+formatRecord(saved))
		},
	}
	addViewerFlag(cmd, &opts.ViewerOptions)
	cmd.Flags().StringVar(&opts.Lift, "lift", "", "lift name (required)")
	cmd.Flags().Float64Var(&opts.Weight, "weight", 0, "weight lifted (required)")
	cmd.Flags().StringVar(&opts.Unit, "unit", "kg", "weight unit")
	cmd.Flags().BoolVar(&opts.Validated, "validated", false, "lift made in competition")
	_ = cmd.MarkFlagRequired("lift")
	_ = cmd.MarkFlagRequired("weight")

	return cmd
}
