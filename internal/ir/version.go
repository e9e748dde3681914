package ir

// Version constants for the IR schema and toolchain.
const (
	// IRVersion is the serialized IR schema version.
	IRVersion = "1"

	// ToolVersion is the lumen toolchain version.
	ToolVersion = "0.1.0"
)
