package cli

import (
	"github.com/spf13/cobra"
)

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <file>",
		Short: "Optimize a source file and print the resulting IR",
		Long: `Parse a source file and run the optimization pipeline until a fixed point
or the round ceiling.

Options come from lumen.cue (or --config); --level, --passes and
--max-rounds override it. Run with --verbose for per-pass statistics.

Exit codes:
  0 - No errors (warnings are allowed)
  1 - The file has lexical or syntax errors
  2 - Command error (unreadable file, invalid options, etc.)

Examples:
  lumen optimize app.js
  lumen optimize app.ts --level 2 --emit yaml
  lumen optimize app.js --passes fold --max-rounds 1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnit(opts, args[0], true, cmd)
		},
	}
	addUnitFlags(cmd, opts)
	cmd.Flags().IntVarP(&opts.Level, "level", "O", 1, "optimization level (0-2)")
	cmd.Flags().StringSliceVar(&opts.Passes, "passes", nil, "explicit pass list (inline,fold,dce)")
	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", 8, "round ceiling")
	return cmd
}
