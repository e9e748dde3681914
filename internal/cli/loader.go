package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/build"
	"github.com/roach88/lumen/internal/config"
	"github.com/roach88/lumen/internal/interchange"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
)

// loadConfig returns the project configuration: the --config file when
// given, else lumen.cue in dir when present, else the defaults.
func loadConfig(opts *RootOptions, dir string) (*config.Config, error) {
	path := opts.Config
	if path == "" {
		candidate := filepath.Join(dir, config.FileName)
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return config.Default(), nil
			}
			return nil, err
		}
		path = candidate
	}
	return config.Load(path)
}

// configError reports an unusable configuration and returns the
// command error exit code.
func configError(f *OutputFormatter, err error) error {
	return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
}

// newLogger logs to w at Info, or Debug with --verbose. JSON output
// switches the handler to JSON so both streams stay machine readable.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func (opts *RootOptions) ids() interchange.IDGenerator {
	if opts.IDGenerator != nil {
		return opts.IDGenerator
	}
	return interchange.UUIDv7Generator{}
}

// sourceMode picks the language mode of path: the --mode flag, then the
// config override, then the file extension.
func sourceMode(path, flag string, cfg *config.Config) (parser.Mode, error) {
	switch {
	case flag != "":
		return parser.ParseMode(flag)
	case cfg.Mode != "":
		return parser.ParseMode(cfg.Mode)
	}
	m, ok := parser.ModeFromPath(path)
	if !ok {
		return m, fmt.Errorf("%s: unsupported source file extension (use --mode)", path)
	}
	return m, nil
}

// sourceError records which step of parseSource failed, so each failure
// is reported under its own code.
type sourceError struct {
	exit    int
	code    string
	message string
	err     error
}

func (e *sourceError) Error() string { return e.message + ": " + e.err.Error() }

func (e *sourceError) Unwrap() error { return e.err }

// parseSource reads and parses one file.
func parseSource(path, modeFlag string, cfg *config.Config) (*parser.Result, error) {
	mode, err := sourceMode(path, modeFlag, cfg)
	if err != nil {
		return nil, &sourceError{ExitCommandError, ErrCodeMode, "cannot choose language mode", err}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &sourceError{ExitCommandError, ErrCodeNotFound, "failed to read source", err}
	}
	res, err := parser.Parse(string(src), mode)
	if err != nil {
		if ir.IsInvariantError(err) {
			return nil, &sourceError{ExitFailure, ErrCodeInvariant, "IR invariant violated", err}
		}
		return nil, &sourceError{ExitFailure, ErrCodeGeneric, "failed to parse source", err}
	}
	res.Diagnostics = res.Diagnostics.WithPath(path)
	return res, nil
}

// sourceFailure reports a parseSource error.
func sourceFailure(f *OutputFormatter, err error) error {
	var se *sourceError
	if errors.As(err, &se) {
		return f.Fail(se.exit, se.code, se.message, se.err)
	}
	return f.Fail(ExitFailure, ErrCodeGeneric, "failed to parse source", err)
}

// expandPaths replaces directories by the sources below them.
func expandPaths(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		found, err := build.Discover(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// configMode returns the configured mode override, if any.
func configMode(cfg *config.Config) (*parser.Mode, error) {
	if cfg.Mode == "" {
		return nil, nil
	}
	m, err := parser.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
