package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/cashgrid/internal/app"
	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/hcl"
)

// Exit codes returned through ExitError.
const (
	CodeFailure      = 1
	CodeUsage        = 2
	CodePartialError = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: CodeUsage, Message: err.Error()}
}

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	logLevel  string
	logFormat string
}

// Execute runs the command line in args. Command output goes to outW,
// logs and usage errors to errW.
func Execute(ctx context.Context, args []string, outW, errW io.Writer) error {
	root := NewRootCommand(outW, errW)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Unknown subcommands and similar parse failures surface here.
	return usageError(err)
}

// NewRootCommand builds the command tree.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "cashgrid",
		Short: "Actuarial cash-flow projection engine",
		Long: `cashgrid projects formula models over a grid of model points.

A project is a .hcl file, or a directory of them, naming the models,
the model point table, the assumption and expense tables and the
output tables.

Usage:
  cashgrid run PROJECT               Project every model point
  cashgrid eval PROJECT CELL         Evaluate one cell and print its sheet
  cashgrid check PROJECT             Compile everything and report problems`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	root.AddCommand(newRunCommand(opts, outW, errW))
	root.AddCommand(newEvalCommand(opts, outW, errW))
	root.AddCommand(newCheckCommand(opts, outW, errW))
	return root
}

func (o *globalOptions) validate() error {
	o.logFormat = strings.ToLower(o.logFormat)
	if o.logFormat != "text" && o.logFormat != "json" {
		return &ExitError{Code: CodeUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	o.logLevel = strings.ToLower(o.logLevel)
	switch o.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ExitError{Code: CodeUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return nil
}

// projectArgs requires the project path plus extra positional arguments.
func projectArgs(extra int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(1+extra)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// newApp validates cfg and loads the project.
func newApp(opts *globalOptions, cfg app.Config, outW, errW io.Writer) (*app.App, error) {
	cfg.LogLevel = opts.logLevel
	cfg.LogFormat = opts.logFormat
	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, &ExitError{Code: CodeUsage, Message: err.Error()}
	}
	a, err := app.NewApp(outW, errW, appConfig, hcl.NewLoader())
	if err != nil {
		return nil, &ExitError{Code: CodeFailure, Message: err.Error()}
	}
	return a, nil
}

func newRunCommand(opts *globalOptions, outW, errW io.Writer) *cobra.Command {
	var cfg app.Config
	cmd := &cobra.Command{
		Use:   "run PROJECT",
		Short: "Project every model point and write the output tables",
		Args:  projectArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ProjectPath = args[0]
			a, err := newApp(opts, cfg, outW, errW)
			if err != nil {
				return err
			}
			summary, err := a.Run(cmd.Context())
			if err != nil {
				return &ExitError{Code: CodeFailure, Message: err.Error()}
			}
			fmt.Fprintf(outW, "rows: %d, points: %d, failed: %d, duration: %s\n", summary.Rows, summary.Points, summary.Failed, summary.Duration)
			if summary.Failed > 0 {
				return &ExitError{
					Code:    CodePartialError,
					Message: fmt.Sprintf("%d points failed, see %s", summary.Failed, batch.ErrorsFile),
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfg.OutDir, "out", "o", "", "Output directory. Overrides the project setting.")
	cmd.Flags().IntVarP(&cfg.Workers, "workers", "w", 0, "Number of concurrent workers. 0 uses the project setting or the CPU count.")
	cmd.Flags().IntVar(&cfg.StatusPort, "status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	return cmd
}

func newEvalCommand(opts *globalOptions, outW, errW io.Writer) *cobra.Command {
	var req app.EvalRequest
	cmd := &cobra.Command{
		Use:   "eval PROJECT CELL",
		Short: "Evaluate one cell and print every value it computed",
		Args:  projectArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, app.Config{ProjectPath: args[0]}, outW, errW)
			if err != nil {
				return err
			}
			req.Cell = args[1]
			if err := a.Eval(cmd.Context(), req); err != nil {
				return &ExitError{Code: CodeFailure, Message: err.Error()}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Model, "model", "m", "", "Model of the cell. Defaults to the main model.")
	cmd.Flags().IntVarP(&req.T, "time", "t", 0, "Time index to evaluate.")
	cmd.Flags().IntVar(&req.Row, "row", 0, "1-based model point row. 0 evaluates without a point.")
	cmd.Flags().IntVar(&req.Sub, "sub", 1, "1-based point within the expanded row.")
	return cmd
}

func newCheckCommand(opts *globalOptions, outW, errW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check PROJECT",
		Short: "Compile every cell and column and expand every model point",
		Args:  projectArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, app.Config{ProjectPath: args[0]}, outW, errW)
			if err != nil {
				return err
			}
			problems, err := a.Check(cmd.Context())
			if err != nil {
				return &ExitError{Code: CodeFailure, Message: err.Error()}
			}
			if problems > 0 {
				return &ExitError{Code: CodeFailure, Message: fmt.Sprintf("%d problems found", problems)}
			}
			return nil
		},
	}
}
