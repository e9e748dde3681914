// Package config loads lumen.cue project files. A file is unified with an
// embedded CUE schema that supplies defaults and constraints, so the
// decoded Config is always complete and within range.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lumen/internal/optimize"
)

//go:embed schema.cue
var schemaSrc string

// FileName is the project file looked up by the CLI.
const FileName = "lumen.cue"

// Config is a validated project configuration.
type Config struct {
	Level       int      `json:"level"`
	Passes      []string `json:"passes,omitempty"`
	MaxRounds   int      `json:"max_rounds"`
	Entry       []string `json:"entry"`
	Preserve    []string `json:"preserve"`
	Mode        string   `json:"mode,omitempty"`
	TreeShaking bool     `json:"tree_shaking"`
	Workers     int      `json:"workers"`
	Cache       Cache    `json:"cache"`
}

// Cache configures the compile cache.
type Cache struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	SizeLimit int64  `json:"size_limit"`
}

// ConfigError reports a configuration that does not satisfy the schema.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	field := e.Field
	if field == "" {
		field = "config"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), field, e.Message)
	}
	return fmt.Sprintf("%s: %s", field, e.Message)
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Default returns the configuration of an empty project file.
func Default() *Config {
	cfg, err := Parse(nil, "defaults")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the project file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE source against the schema. filename is used in
// error positions.
func Parse(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	v := def.Unify(user)
	if err := v.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	return &cfg, nil
}

// formatCUEError keeps the first error with its field path and position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Message: err.Error()}
	}
	first := errs[0]
	ce := &ConfigError{Field: strings.Join(errors.Path(first), ".")}
	format, args := first.Msg()
	ce.Message = fmt.Sprintf(format, args...)
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// Pipeline returns optimizer options for this configuration.
func (c *Config) Pipeline(logger *slog.Logger) optimize.Options {
	return optimize.Options{
		Level:     c.Level,
		Passes:    c.Passes,
		MaxRounds: c.MaxRounds,
		Entry:     c.Entry,
		Preserve:  c.Preserve,
		Logger:    logger,
	}
}
