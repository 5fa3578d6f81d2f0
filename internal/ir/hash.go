package ir

import (
	"crypto/sha256"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Single-call and batch operations hash under different domains AND
// different object shapes, so a call never collides with the one-element
// batch containing it. The version suffix allows algorithm migration.
const (
	DomainOperation      = "timelock/operation/v1"
	DomainOperationBatch = "timelock/operation-batch/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) OperationID {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var id OperationID
	copy(id[:], h.Sum(nil))
	return id
}

// HashOperation computes the id of a single-call operation.
//
// Canonical form (RFC 8785):
//
//	{"call":{"args":[...],"selector":"...","target":"..."},"predecessor":"0x..","salt":"0x.."}
//
// Returns an error if the call is invalid, including any string that is
// not valid UTF-8 in NFC form.
func HashOperation(call Call, predecessor OperationID, salt Salt) (OperationID, error) {
	if err := call.Validate(); err != nil {
		return ZeroOperationID, fmt.Errorf("HashOperation: %w", err)
	}
	obj := IRObject{
		"call":        call.canonical(),
		"predecessor": IRString(predecessor.String()),
		"salt":        IRString(salt.String()),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return ZeroOperationID, fmt.Errorf("HashOperation: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOperation, canonical), nil
}

// HashOperationBatch computes the id of a batch operation. The id is
// order-sensitive: permuting calls yields a different id.
//
// Canonical form (RFC 8785):
//
//	{"calls":[{...},{...}],"predecessor":"0x..","salt":"0x.."}
func HashOperationBatch(calls []Call, predecessor OperationID, salt Salt) (OperationID, error) {
	list := make(IRArray, len(calls))
	for i, c := range calls {
		if err := c.Validate(); err != nil {
			return ZeroOperationID, fmt.Errorf("HashOperationBatch: calls[%d]: %w", i, err)
		}
		list[i] = c.canonical()
	}
	obj := IRObject{
		"calls":       list,
		"predecessor": IRString(predecessor.String()),
		"salt":        IRString(salt.String()),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return ZeroOperationID, fmt.Errorf("HashOperationBatch: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOperationBatch, canonical), nil
}

// MustHashOperation is like HashOperation but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashOperation(call Call, predecessor OperationID, salt Salt) OperationID {
	id, err := HashOperation(call, predecessor, salt)
	if err != nil {
		panic(err)
	}
	return id
}

// MustHashOperationBatch is like HashOperationBatch but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHashOperationBatch(calls []Call, predecessor OperationID, salt Salt) OperationID {
	id, err := HashOperationBatch(calls, predecessor, salt)
	if err != nil {
		panic(err)
	}
	return id
}
