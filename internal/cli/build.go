package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/build"
	"github.com/roach88/lumen/internal/cache"
	"github.com/roach88/lumen/internal/interchange"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Output  string // frame stream of every unit's interchange form
	NoCache bool
	Workers int
	Level   int
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <dir>",
		Short: "Compile every source file below a directory as one program",
		Long: `Compile all sources below a directory on a bounded worker pool, link
their imports and remove exports no other file uses.

The project file is <dir>/lumen.cue unless --config is given. Compiled
units are cached in SQLite at cache.path (relative to <dir>). With -o the
interchange form of every unit is written as a length-prefixed frame
stream that "lumen decode" reads back.

Exit codes:
  0 - Build succeeded (warnings are allowed)
  1 - Lexical or syntax errors were found
  2 - Command error (missing directory, bad config, cancelled, etc.)

Examples:
  lumen build ./src
  lumen build ./src -o out.lumen --workers 4
  lumen build ./src --no-cache --level 2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write unit IR frames to this file")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "disable the compile cache")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "units compiled at once (0 = config or one per CPU)")
	cmd.Flags().IntVarP(&opts.Level, "level", "O", 1, "optimization level (0-2)")

	return cmd
}

func runBuild(opts *BuildOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("directory not found: %s", dir), err)
	}
	cfg, err := loadConfig(opts.RootOptions, dir)
	if err != nil {
		return configError(f, err)
	}
	paths, err := build.Discover(dir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to find sources", err)
	}
	f.VerboseLog("Found %d source file(s) in %s", len(paths), dir)

	po := cfg.Pipeline(logger)
	if cmd.Flags().Changed("level") {
		po.Level = opts.Level
	}
	workers := cfg.Workers
	if cmd.Flags().Changed("workers") {
		workers = opts.Workers
	}
	bopts := []build.Option{
		build.WithOptions(po),
		build.WithWorkers(workers),
		build.WithTreeShaking(cfg.TreeShaking),
		build.WithIDGenerator(opts.ids()),
		build.WithLogger(logger),
	}
	if m, err := configMode(cfg); err != nil {
		return configError(f, err)
	} else if m != nil {
		bopts = append(bopts, build.WithMode(*m))
	}

	if cfg.Cache.Enabled && !opts.NoCache {
		path := cfg.Cache.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		c, err := cache.Open(path, cache.WithLogger(logger))
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to open cache", err)
		}
		defer func() {
			if closeErr := c.Close(); closeErr != nil {
				logger.Error("error closing cache", "error", closeErr)
			}
		}()
		bopts = append(bopts, build.WithCache(c, cfg.Cache.SizeLimit))
	}

	// Cancel between units on Ctrl-C.
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := build.New(bopts...).Build(ctx, paths)
	if err != nil {
		if ctx.Err() != nil {
			return f.Fail(ExitCommandError, ErrCodeGeneric, "build cancelled", context.Cause(ctx))
		}
		return f.Fail(ExitCommandError, ErrCodeGeneric, "build failed", err)
	}

	if opts.Output != "" {
		if err := writeFrames(opts.Output, report); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
		f.VerboseLog("Wrote %d unit(s) to %s", len(report.Units), opts.Output)
	}

	if opts.Format == "json" {
		if err := f.Success(report); err != nil {
			return err
		}
	} else {
		writeBuildText(f, dir, report)
	}
	return diagnosticsExit(report.AllDiagnostics())
}

// writeFrames writes one interchange frame per unit, in path order.
func writeFrames(path string, r *build.Report) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	w := bufio.NewWriter(file)
	fw := interchange.NewFrameWriter(w)
	for _, u := range r.Units {
		data, err := interchange.Encode(u.Store, u.StoreID)
		if err != nil {
			return fmt.Errorf("%s: %w", u.Path, err)
		}
		if err := fw.WriteFrame(data); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeBuildText(f *OutputFormatter, dir string, r *build.Report) {
	w := f.Writer
	for _, u := range r.Units {
		rel, err := filepath.Rel(dir, u.Path)
		if err != nil {
			rel = u.Path
		}
		var notes []string
		if u.Cached {
			notes = append(notes, "cached")
		}
		if len(u.Shaken) > 0 {
			notes = append(notes, "shaken: "+strings.Join(u.Shaken, ", "))
		}
		line := fmt.Sprintf("%s  %d nodes", rel, u.Nodes)
		if len(notes) > 0 {
			line += "  (" + strings.Join(notes, "; ") + ")"
		}
		fmt.Fprintln(w, line)
	}
	diags := r.AllDiagnostics()
	for _, d := range diags {
		fmt.Fprintln(w, d)
	}
	errs := errorCount(diags)
	fmt.Fprintf(w, "Built %d unit(s): %d error(s), %d warning(s)\n", len(r.Units), errs, len(diags)-errs)
}
