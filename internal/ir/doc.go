// Package ir provides the value model and identity scheme for timelock
// operations.
//
// This package contains types and pure functions only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere; use int64 for numbers
//   - Operation identity is content-addressed: SHA-256 over RFC 8785
//     canonical JSON with a domain prefix (see hash.go)
//   - All JSON tags use snake_case
package ir
