package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// marshalPayload converts an event payload to canonical JSON TEXT.
// A nil payload is stored as "{}".
func marshalPayload(payload ir.IRObject) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT to IRObject.
// Large integers survive: IRObject decoding goes through json.Number.
func unmarshalPayload(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return obj, nil
}
