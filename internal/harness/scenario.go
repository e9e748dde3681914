package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
)

// Scenario is one program together with the assertions its compilation
// must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mode is the language mode; plain when empty.
	Mode string `yaml:"mode,omitempty"`

	// Config is a lumen.cue document. Empty means the defaults.
	Config string `yaml:"config,omitempty"`

	// Source is the program text. Exactly one of Source and File is set.
	Source string `yaml:"source,omitempty"`

	// File is a program path, relative to the scenario file.
	File string `yaml:"file,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion is one check against a scenario result. Which fields apply
// depends on Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Code is a diagnostic code such as W401 (diagnostic).
	Code string `yaml:"code,omitempty"`

	// Count is the exact number of diagnostics with Code. When nil at
	// least one is required.
	Count *int `yaml:"count,omitempty"`

	// Names are the expected top-level names (bindings).
	Names []string `yaml:"names,omitempty"`

	// Kind is an IR node kind such as Call (absent, present).
	Kind string `yaml:"kind,omitempty"`

	// Lines is the expected console output (output).
	Lines []string `yaml:"lines,omitempty"`

	// Name and Value describe a top-level binding (global).
	Name  string `yaml:"name,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertNoErrors          = "no_errors"
	AssertDiagnostic        = "diagnostic"
	AssertConverged         = "converged"
	AssertNotConverged      = "not_converged"
	AssertBindings          = "bindings"
	AssertAbsent            = "absent"
	AssertPresent           = "present"
	AssertOutput            = "output"
	AssertGlobal            = "global"
	AssertBehaviorPreserved = "behavior_preserved"
)

// LoadScenario reads and parses a scenario YAML file. A program File is
// read relative to the scenario and stored in Source.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.File != "" {
		file := s.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(filepath.Dir(path), file)
		}
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read scenario program: %w", err)
		}
		s.Source = string(src)
		if s.Mode == "" {
			if m, ok := parser.ModeFromPath(file); ok {
				s.Mode = m.String()
			}
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML. File references are left
// unresolved.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Source == "") == (s.File == "") {
		return fmt.Errorf("exactly one of source and file is required")
	}
	if s.Mode != "" {
		if _, err := parser.ParseMode(s.Mode); err != nil {
			return err
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertNoErrors, AssertConverged, AssertNotConverged, AssertBehaviorPreserved:
	case AssertDiagnostic:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic", index)
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for diagnostic", index)
		}
	case AssertBindings:
		if a.Names == nil {
			return fmt.Errorf("assertions[%d]: names is required for bindings (use [] for none)", index)
		}
	case AssertAbsent, AssertPresent:
		if _, err := ir.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertOutput:
		if a.Lines == nil {
			return fmt.Errorf("assertions[%d]: lines is required for output (use [] for none)", index)
		}
	case AssertGlobal:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for global", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
