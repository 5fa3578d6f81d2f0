package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
// This is the ONLY serialization used for operation identity.
//
// Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units
//  2. No HTML escaping
//  3. Strings must be valid UTF-8 in NFC form; anything else is rejected
//     rather than rewritten, so distinct inputs never share an encoding
//  4. Floats and null are rejected
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case IRString:
		return marshalCanonicalString(string(val))
	case string:
		return marshalCanonicalString(val)
	case IRInt:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case IRBool:
		return []byte(strconv.FormatBool(bool(val))), nil
	case IRArray:
		return marshalCanonicalArray(val)
	case IRObject:
		return marshalCanonicalObject(val)
	default:
		irVal, err := ToIRValue(v)
		if err != nil {
			return nil, fmt.Errorf("canonical JSON: %w", err)
		}
		return MarshalCanonical(irVal)
	}
}

// CheckString reports whether s can be canonically encoded: it must be
// valid UTF-8 and already in NFC form.
func CheckString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("string %q is not valid UTF-8", s)
	}
	if !norm.NFC.IsNormalString(s) {
		return fmt.Errorf("string %q is not in NFC form", s)
	}
	return nil
}

// marshalCanonicalString escapes only quote, backslash and control
// characters.
func marshalCanonicalString(s string) ([]byte, error) {
	if err := CheckString(s); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return unescapeLineSeparators(out), nil
}

// unescapeLineSeparators reverts encoding/json's \u2028 and \u2029 escapes,
// which RFC 8785 requires to be emitted literally. An escape preceded by an
// odd run of backslashes is literal text and stays untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}
		if i+5 < len(data) && string(data[i+1:i+5]) == "u202" && (data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		// Any other escape: copy the backslash and the escaped byte together
		// so an escaped backslash cannot start a false match.
		out = append(out, data[i])
		if i+1 < len(data) {
			out = append(out, data[i+1])
			i++
		}
	}
	return out
}

func marshalCanonicalArray(arr IRArray) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj IRObject) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
