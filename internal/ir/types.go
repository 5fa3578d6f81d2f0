package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// OperationID is the content-addressed identifier of an operation.
// The zero value means "no operation" and is used as the empty predecessor.
type OperationID [32]byte

// ZeroOperationID is the "no predecessor" value.
var ZeroOperationID OperationID

// IsZero reports whether id is the zero id.
func (id OperationID) IsZero() bool {
	return id == ZeroOperationID
}

// String returns the 0x-prefixed lowercase hex form.
func (id OperationID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id OperationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *OperationID) UnmarshalText(text []byte) error {
	parsed, err := ParseOperationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseOperationID parses a 64-digit hex id, with or without 0x prefix.
// An empty string and "0" parse to the zero id.
func ParseOperationID(s string) (OperationID, error) {
	var id OperationID
	if err := parseHex32(s, id[:]); err != nil {
		return ZeroOperationID, fmt.Errorf("operation id: %w", err)
	}
	return id, nil
}

// Salt distinguishes otherwise identical operations.
type Salt [32]byte

// ZeroSalt is the empty salt.
var ZeroSalt Salt

// DomainSalt prefixes label-derived salts.
const DomainSalt = "timelock/salt/v1"

// IsZero reports whether s is the zero salt.
func (s Salt) IsZero() bool {
	return s == ZeroSalt
}

// String returns the 0x-prefixed lowercase hex form.
func (s Salt) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// MarshalText implements encoding.TextMarshaler.
func (s Salt) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Salt) UnmarshalText(text []byte) error {
	parsed, err := ParseSalt(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSalt parses a hex salt of up to 64 digits, with or without 0x
// prefix. Shorter values are left-padded with zeros.
func ParseSalt(s string) (Salt, error) {
	var salt Salt
	if err := parseHex32(s, salt[:]); err != nil {
		return ZeroSalt, fmt.Errorf("salt: %w", err)
	}
	return salt, nil
}

// SaltFromString derives a salt from a human-readable label.
// The same label always yields the same salt.
func SaltFromString(label string) Salt {
	h := sha256.New()
	h.Write([]byte(DomainSalt))
	h.Write([]byte{0x00})
	h.Write([]byte(label))
	var s Salt
	copy(s[:], h.Sum(nil))
	return s
}

// SaltFromBytes builds a salt from raw entropy, right-aligned.
// At most 32 bytes are used.
func SaltFromBytes(b []byte) Salt {
	var s Salt
	if len(b) > len(s) {
		b = b[:len(s)]
	}
	copy(s[len(s)-len(b):], b)
	return s
}

func parseHex32(s string, dst []byte) error {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) > 64 {
		return fmt.Errorf("too long: %d hex digits (max 64)", len(s))
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	copy(dst[len(dst)-len(raw):], raw)
	return nil
}

// Principal identifies a party: a caller, a call target, a role member.
type Principal string

// OpenPrincipal is the wildcard role member. Holding EXECUTOR with
// OpenPrincipal opens execution to every caller. It is never a real caller.
const OpenPrincipal Principal = "*"

// IsOpen reports whether p is the wildcard principal.
func (p Principal) IsOpen() bool {
	return p == OpenPrincipal
}

// Role names a permission scope.
type Role string

const (
	RoleDefaultAdmin Role = "DEFAULT_ADMIN"
	RoleProposer     Role = "PROPOSER"
	RoleCanceller    Role = "CANCELLER"
	RoleExecutor     Role = "EXECUTOR"
)

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleDefaultAdmin, "ADMIN":
		return RoleDefaultAdmin, nil
	case RoleProposer:
		return RoleProposer, nil
	case RoleCanceller:
		return RoleCanceller, nil
	case RoleExecutor:
		return RoleExecutor, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// OperationState is the lifecycle state of an operation.
type OperationState int

const (
	StateUnset OperationState = iota
	StateWaiting
	StateReady
	StateDone
)

var stateNames = [...]string{"Unset", "Waiting", "Ready", "Done"}

func (s OperationState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("OperationState(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s OperationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Pending reports whether the operation is scheduled but not executed.
func (s OperationState) Pending() bool {
	return s == StateWaiting || s == StateReady
}

// ParseOperationState parses a state name as produced by String.
func ParseOperationState(s string) (OperationState, error) {
	for i, name := range stateNames {
		if strings.EqualFold(name, s) {
			return OperationState(i), nil
		}
	}
	return StateUnset, fmt.Errorf("unknown operation state %q", s)
}

// DoneTimestamp marks an executed operation in the ledger. It is distinct
// from 0 (unset) and below any clock value a ledger is scheduled against.
const DoneTimestamp uint64 = 1
