package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rdialog/internal/config"
	"github.com/roach88/rdialog/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // path to a YAML config file

	cfg    *config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// config returns the loaded configuration, or the defaults when the
// command runs without the root pre-run (as in tests).
func (o *RootOptions) config() *config.Config {
	if o.cfg == nil {
		cfg := config.Default()
		o.cfg = &cfg
	}
	return o.cfg
}

// log returns the command logger, discarding output when none is set.
func (o *RootOptions) log() *slog.Logger {
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	return o.logger
}

// dialogsDir returns the dialog directory argument, falling back to the
// configured directory.
func (o *RootOptions) dialogsDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return o.config().Dialogs
}

// database returns the --db value, falling back to the configured store.
func (o *RootOptions) database(flag string) string {
	if flag != "" {
		return flag
	}
	return o.config().Database
}

// NewRootCommand creates the root command for the rdialog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rdialog",
		Short: "rdialog - reactive dialog evaluator",
		Long: `Evaluate dialogs whose field values are computed by providers that
depend on other fields, buttons and each other.

Dialogs are declared in CUE. Each trigger (a changed value, the dialog
opening, a button press) runs one evaluation pass over the part of the
dependency graph it reaches and answers with ordered updates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to config file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewGraphCommand(opts))
	cmd.AddCommand(NewTriggerCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// setup loads the config file and builds the logger. --verbose forces
// debug logging.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	o.cfg = &cfg

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.logger = logging.NewWithWriter(cmd.ErrOrStderr(), level)
	return nil
}
