package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/config"
	"github.com/roach88/lumen/internal/diag"
	"github.com/roach88/lumen/internal/interchange"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/optimize"
)

// IR output forms.
const (
	EmitDump = "dump" // indented text, see ir.Store.Dump
	EmitIR   = "ir"   // canonical JSON interchange envelope
	EmitYAML = "yaml" // YAML rendering of the envelope
)

// ValidEmits defines the allowed --emit values.
var ValidEmits = []string{EmitDump, EmitIR, EmitYAML}

// UnitOptions holds flags shared by the parse and optimize commands.
type UnitOptions struct {
	*RootOptions
	Mode   string // language mode override
	Emit   string // dump | ir | yaml
	Output string // output file path

	// optimize only
	Level     int
	Passes    []string
	MaxRounds int
}

// UnitOutput is the JSON payload of parse and optimize.
type UnitOutput struct {
	Path        string          `json:"path"`
	Mode        string          `json:"mode"`
	StoreID     string          `json:"store_id,omitempty"`
	Nodes       int             `json:"nodes"`
	Stats       *optimize.Stats `json:"stats,omitempty"`
	Diagnostics diag.List       `json:"diagnostics"`
	IR          any             `json:"ir,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a source file and print its IR",
		Long: `Parse a JavaScript, TypeScript or JSX file into the IR without optimizing it.

Lexical and syntax errors are reported as diagnostics; the IR built before
and after each error is still printed.

Exit codes:
  0 - No errors
  1 - The file has lexical or syntax errors
  2 - Command error (unreadable file, unknown mode, etc.)

Examples:
  lumen parse app.ts
  lumen parse app.js --emit yaml
  lumen parse widget.js --mode jsx --emit ir -o widget.ir.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnit(opts, args[0], false, cmd)
		},
	}
	addUnitFlags(cmd, opts)
	return cmd
}

func addUnitFlags(cmd *cobra.Command, opts *UnitOptions) {
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "language mode (plain|jsx|typescript|tsx); default from extension")
	cmd.Flags().StringVar(&opts.Emit, "emit", EmitDump, "IR output form (dump|ir|yaml)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the IR to this file instead of stdout")
}

func runUnit(opts *UnitOptions, path string, optimizeIR bool, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if !slices.Contains(ValidEmits, opts.Emit) {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid emit %q: must be one of %v", opts.Emit, ValidEmits), nil)
	}
	cfg, err := loadConfig(opts.RootOptions, ".")
	if err != nil {
		return configError(f, err)
	}

	res, err := parseSource(path, opts.Mode, cfg)
	if err != nil {
		return sourceFailure(f, err)
	}
	f.VerboseLog("Parsed %s as %s: %d nodes", path, res.Mode, res.Store.Len())

	out := UnitOutput{Path: path, Mode: res.Mode.String(), Diagnostics: res.Diagnostics}
	if optimizeIR {
		stats, diags, err := runPipeline(opts, cmd, cfg, res.Store)
		if err != nil {
			code := ErrCodeGeneric
			if ir.IsInvariantError(err) {
				code = ErrCodeInvariant
			}
			return f.Fail(GetExitCode(err), code, "optimization failed", err)
		}
		out.Stats = &stats
		out.Diagnostics = append(out.Diagnostics, diags.WithPath(path)...).Sorted()
		f.VerboseLog("Optimized in %d rounds (converged=%t): folded %d, inlined %d, removed %d",
			stats.Rounds, stats.Converged, stats.Folded, stats.Inlined, stats.Removed)
	}
	out.Nodes = res.Store.Len()
	if opts.Emit != EmitDump {
		out.StoreID = opts.ids().Generate()
	}

	rendered, err := render(res.Store, opts.Emit, out.StoreID)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeGeneric, "failed to render IR", err)
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, rendered, 0o644); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	if opts.Format == "json" {
		if opts.Output == "" {
			out.IR = jsonIR(rendered, opts.Emit)
		}
		if err := f.Success(out); err != nil {
			return err
		}
	} else {
		writeDiagnostics(f, out.Diagnostics)
		if opts.Output == "" {
			fmt.Fprint(f.Writer, string(rendered))
		} else {
			fmt.Fprintf(f.Writer, "Wrote %s\n", opts.Output)
		}
	}
	return diagnosticsExit(out.Diagnostics)
}

// runPipeline builds the optimizer from the config and the command's
// flags. Flags override the config only when given.
func runPipeline(opts *UnitOptions, cmd *cobra.Command, cfg *config.Config, s *ir.Store) (optimize.Stats, diag.List, error) {
	po := cfg.Pipeline(newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if cmd.Flags().Changed("level") {
		po.Level = opts.Level
	}
	if cmd.Flags().Changed("passes") {
		po.Passes = opts.Passes
	}
	if cmd.Flags().Changed("max-rounds") {
		po.MaxRounds = opts.MaxRounds
	}
	pipeline, err := optimize.New(po)
	if err != nil {
		return optimize.Stats{}, nil, WrapExitError(ExitCommandError, "invalid optimizer options", err)
	}
	stats, diags, err := pipeline.Run(s)
	if err != nil {
		return stats, nil, WrapExitError(ExitFailure, "IR invariant violated", err)
	}
	return stats, diags, nil
}

func render(s *ir.Store, emit, storeID string) ([]byte, error) {
	switch emit {
	case EmitIR:
		data, err := interchange.Encode(s, storeID)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case EmitYAML:
		return interchange.EncodeYAML(s, storeID)
	}
	return []byte(s.Dump()), nil
}

// jsonIR embeds the rendered IR in a JSON response: the interchange
// envelope as an object, text forms as strings.
func jsonIR(rendered []byte, emit string) any {
	if emit == EmitIR {
		return json.RawMessage(rendered)
	}
	return string(rendered)
}

// writeDiagnostics prints one diagnostic per line to the error writer.
func writeDiagnostics(f *OutputFormatter, diags diag.List) {
	w := f.GetErrWriter()
	for _, d := range diags.Sorted() {
		fmt.Fprintln(w, d)
	}
}

// diagnosticsExit turns lexical and syntax errors into exit code 1.
func diagnosticsExit(diags diag.List) error {
	n := errorCount(diags)
	if n == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d error(s)", n))
}

func errorCount(diags diag.List) int {
	return diags.Count(diag.LexError) + diags.Count(diag.SyntaxError)
}
