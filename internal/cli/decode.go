package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lumen/internal/interchange"
	"github.com/roach88/lumen/internal/ir"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Emit string // dump | yaml
}

// DecodedStore is one entry of the decode JSON payload.
type DecodedStore struct {
	Header interchange.Header `json:"header"`
	IR     string             `json:"ir"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <file>",
		Short: "Verify and print serialized IR",
		Long: `Read a single interchange envelope (from "lumen parse --emit ir") or a
frame stream (from "lumen build -o"), verify every store and print it.

Exit codes:
  0 - Every store decoded and verified
  2 - Unreadable file, malformed envelope or content hash mismatch

Examples:
  lumen decode app.ir.json
  lumen decode out.lumen --emit yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Emit, "emit", EmitDump, "output form (dump|yaml)")
	return cmd
}

func runDecode(opts *DecodeOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Emit != EmitDump && opts.Emit != EmitYAML {
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid emit %q: must be dump or yaml", opts.Emit), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to read IR", err)
	}

	payloads, err := splitPayloads(data)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDecode, "failed to read frames", err)
	}
	out := make([]DecodedStore, 0, len(payloads))
	for i, p := range payloads {
		s, h, err := interchange.Decode(p)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeDecode, fmt.Sprintf("store %d", i), err)
		}
		text, err := decodedText(s, h, opts.Emit)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeDecode, fmt.Sprintf("store %d", i), err)
		}
		out = append(out, DecodedStore{Header: h, IR: text})
	}

	if opts.Format == "json" {
		return f.Success(out)
	}
	for _, d := range out {
		fmt.Fprintf(f.Writer, "# store %s (%d nodes, %s)\n", d.Header.StoreID, d.Header.Count, d.Header.Hash)
		fmt.Fprint(f.Writer, d.IR)
	}
	return nil
}

// splitPayloads treats data starting with '{' as a single envelope and
// anything else as a frame stream.
func splitPayloads(data []byte) ([][]byte, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return [][]byte{trimmed}, nil
	}
	var out [][]byte
	fr := interchange.NewFrameReader(bytes.NewReader(data))
	for {
		p, err := fr.ReadFrame()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}

func decodedText(s *ir.Store, h interchange.Header, emit string) (string, error) {
	if emit == EmitYAML {
		data, err := interchange.EncodeYAML(s, h.StoreID)
		return string(data), err
	}
	return s.Dump(), nil
}
