package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/build"
	"github.com/roach88/lumen/internal/diag"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
}

// CheckResult is the JSON payload of check.
type CheckResult struct {
	Files       int       `json:"files"`
	Errors      int       `json:"errors"`
	Warnings    int       `json:"warnings"`
	Diagnostics diag.List `json:"diagnostics"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <paths...>",
		Short: "Report diagnostics for source files",
		Long: `Parse and optimize files (directories are searched recursively) and report
every diagnostic, including import cycles between them. Nothing is written
and the cache is not used.

Exit codes:
  0 - No errors (warnings are allowed)
  1 - Lexical or syntax errors were found
  2 - Command error (missing path, bad config, etc.)

Examples:
  lumen check src
  lumen check app.ts lib.ts --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}
	return cmd
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	cfg, err := loadConfig(opts.RootOptions, ".")
	if err != nil {
		return configError(f, err)
	}
	paths, err := expandPaths(args)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to find sources", err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	bopts := []build.Option{
		build.WithOptions(cfg.Pipeline(logger)),
		build.WithTreeShaking(false),
		build.WithWorkers(cfg.Workers),
		build.WithIDGenerator(opts.ids()),
		build.WithLogger(logger),
	}
	if m, err := configMode(cfg); err != nil {
		return configError(f, err)
	} else if m != nil {
		bopts = append(bopts, build.WithMode(*m))
	}
	report, err := build.New(bopts...).Build(commandContext(cmd), paths)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "check failed", err)
	}

	diags := report.AllDiagnostics()
	result := CheckResult{
		Files:       len(report.Units),
		Errors:      errorCount(diags),
		Warnings:    len(diags) - errorCount(diags),
		Diagnostics: diags,
	}
	if opts.Format == "json" {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		for _, d := range diags {
			fmt.Fprintln(f.Writer, d)
		}
		fmt.Fprintf(f.Writer, "%d file(s) checked: %d error(s), %d warning(s)\n", result.Files, result.Errors, result.Warnings)
	}
	return diagnosticsExit(diags)
}
