package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/fitsync/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create configuration files",
	}
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to a file",
		Long: `Write the default configuration as YAML, creating parent directories.

Example:
  fitsync config init ./fitsync.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if err := config.Save(args[0], config.Default()); err != nil {
				_ = f.Error(CodeConfig, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			return f.Result(map[string]string{"path": args[0]}, "wrote "+args[0])
		},
	}
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying the file given with --config and
FITSYNC_* environment overrides. Credentials are redacted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			cfg, err := config.Load(rootOpts.Config)
			if err != nil {
				_ = f.Error(CodeConfig, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if cfg.Media.SecretAccessKey != "" {
				cfg.Media.SecretAccessKey = "REDACTED"
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to encode config", err)
			}
			return f.Result(cfg, strings.TrimRight(string(out), "\n"))
		},
	}
}
