package ir

// Version constants for the wire format and engine.
const (
	// IRVersion is the request/response schema version.
	IRVersion = "1"

	// EngineVersion is the rdialog engine version.
	EngineVersion = "0.1.0"
)
