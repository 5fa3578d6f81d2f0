package engine

import "github.com/google/uuid"

// IDGenerator produces correlation ids. Every entry point call draws one
// and stamps it on all events it emits.
// Implemented by UUIDv7Generator and testutil.SequentialIDGenerator.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 correlation ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, making ids
// sortable by creation time, which helps when reading the event log.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
