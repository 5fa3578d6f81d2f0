package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface over the value types a call argument may hold.
// Only IRString, IRInt, IRBool, IRArray and IRObject implement it.
// There is no float type: floats have no canonical encoding.
type IRValue interface {
	irValue()
}

// IRString is a string argument.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer argument. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean argument.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison orders by UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected JSON object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("expected JSON array, got %T", v)
	}
	*arr = a
	return nil
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// This is not the canonical form; use MarshalCanonical for hashing.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalIRValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalIRValue marshals an IRValue to JSON bytes.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := v.(type) {
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		return val.MarshalJSON()
	case IRObject:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

// UnmarshalIRValue decodes JSON into an IRValue.
// Rejects null and floats.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return ToIRValue(raw)
}

// ToIRValue converts a decoded Go value (as produced by encoding/json with
// UseNumber, or by yaml.v3) to an IRValue. Rejects null and floats.
func ToIRValue(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden: only string, int, bool, array, object allowed")
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("number out of int64 range: %d", val)
		}
		return IRInt(int64(val)), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(n), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := ToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := ToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
