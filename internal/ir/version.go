package ir

// Version constants for the identity scheme and engine.
const (
	// HashVersion is the identity scheme version (suffix of the hash domains).
	HashVersion = "1"

	// EngineVersion is the timelock engine version.
	EngineVersion = "0.1.0"
)
