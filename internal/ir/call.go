package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Call is one instruction of an operation: a target, an entry point on that
// target and an ordered argument list.
type Call struct {
	Target   Principal `json:"target"`
	Selector string    `json:"selector"`
	Args     IRArray   `json:"args"`
}

// NewCall builds a call. A nil argument list is stored as empty so that
// hashing does not depend on nil-vs-empty.
func NewCall(target Principal, selector string, args ...IRValue) Call {
	if args == nil {
		args = IRArray{}
	}
	return Call{Target: target, Selector: selector, Args: IRArray(args)}
}

// ValidationError reports a malformed call.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the call is well formed. Every string in the call must
// be encodable as is: the bytes that are hashed are the bytes dispatched.
func (c Call) Validate() error {
	if c.Target == "" {
		return ValidationError{Field: "target", Message: "target is required"}
	}
	if c.Target.IsOpen() {
		return ValidationError{Field: "target", Message: "wildcard principal cannot be a call target"}
	}
	if err := CheckString(string(c.Target)); err != nil {
		return ValidationError{Field: "target", Message: err.Error()}
	}
	if c.Selector == "" {
		return ValidationError{Field: "selector", Message: "selector is required"}
	}
	if err := CheckString(c.Selector); err != nil {
		return ValidationError{Field: "selector", Message: err.Error()}
	}
	for i, arg := range c.Args {
		if err := validateValue(arg); err != nil {
			return ValidationError{Field: fmt.Sprintf("args[%d]", i), Message: err.Error()}
		}
	}
	return nil
}

func validateValue(v IRValue) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden")
	case IRString:
		return CheckString(string(val))
	case IRArray:
		for i, elem := range val {
			if err := validateValue(elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case IRObject:
		for _, k := range val.SortedKeys() {
			if err := CheckString(k); err != nil {
				return fmt.Errorf("key: %w", err)
			}
			if err := validateValue(val[k]); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
	}
	return nil
}

// canonical returns the object hashed for this call.
func (c Call) canonical() IRObject {
	args := c.Args
	if args == nil {
		args = IRArray{}
	}
	return IRObject{
		"target":   IRString(c.Target),
		"selector": IRString(c.Selector),
		"args":     args,
	}
}

// ParseCalls decodes a JSON call list:
//
//	[{"target":"state","selector":"set","args":["k","v"]}]
//
// A single JSON object is accepted as a one-element list.
func ParseCalls(data []byte) ([]Call, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		data = append(append([]byte{'['}, data...), ']')
	}

	var calls []Call
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("parse calls: %w", err)
	}
	for i := range calls {
		if calls[i].Args == nil {
			calls[i].Args = IRArray{}
		}
		if err := calls[i].Validate(); err != nil {
			return nil, fmt.Errorf("calls[%d]: %w", i, err)
		}
	}
	return calls, nil
}
