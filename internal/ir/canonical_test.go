package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalCall(t *testing.T) {
	tests := []struct {
		name     string
		call     Call
		expected string
	}{
		{
			name:     "no args",
			call:     NewCall("state", "noop"),
			expected: `{"args":[],"selector":"noop","target":"state"}`,
		},
		{
			name:     "scalar args keep their order",
			call:     NewCall("state", "set", IRString("k"), IRInt(-7), IRBool(true)),
			expected: `{"args":["k",-7,true],"selector":"set","target":"state"}`,
		},
		{
			name:     "int64 bounds",
			call:     NewCall("timelock", "update_delay", IRInt(9223372036854775807), IRInt(-9223372036854775808)),
			expected: `{"args":[9223372036854775807,-9223372036854775808],"selector":"update_delay","target":"timelock"}`,
		},
		{
			name: "object args sort keys at every level",
			call: NewCall("vault", "configure", IRObject{
				"zebra": IRInt(1),
				"alpha": IRObject{"b": IRInt(2), "a": IRArray{}},
			}),
			expected: `{"args":[{"alpha":{"a":[],"b":2},"zebra":1}],"selector":"configure","target":"vault"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.call.canonical())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalOperation(t *testing.T) {
	obj := IRObject{
		"salt":        IRString(SaltFromString("s1").String()),
		"predecessor": IRString(ZeroOperationID.String()),
		"call":        NewCall("state", "set", IRString("k")).canonical(),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)

	s := string(result)
	assert.True(t, strings.HasPrefix(s, `{"call":{"args":["k"],"selector":"set","target":"state"},"predecessor":"0x0000`), s)
	assert.Contains(t, s, `,"salt":"0x`)
	assert.NotContains(t, s, " ")
	assert.NotContains(t, s, "\n")
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+E000 sorts after U+10000 in UTF-16 but before it in UTF-8.
	args := IRObject{
		"\ue000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(args)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\ue000\":1}", string(result))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"html is literal", "<b>a & b</b>", `"<b>a & b</b>"`},
		{"line separators are literal", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"backslash-u2028 text stays escaped", `esc \u2028`, `"esc \\u2028"`},
		{"text and separator mixed", "lit \\u2028 and \u2028", "\"lit \\\\u2028 and \u2028\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(NewCall("state", "set", IRString(tt.input)).canonical())
			require.NoError(t, err)
			assert.Equal(t, `{"args":[`+tt.expected+`],"selector":"set","target":"state"}`, string(result))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		message string
	}{
		{"float", 3.14, "float"},
		{"null", nil, "null"},
		{"decomposed string", IRString("cafe\u0301"), "NFC"},
		{"decomposed key", IRObject{"cafe\u0301": IRInt(1)}, "NFC"},
		{"invalid UTF-8 string", IRString("\xff"), "UTF-8"},
		{"invalid UTF-8 key", IRObject{"\xfe": IRInt(1)}, "UTF-8"},
		{"invalid UTF-8 nested", IRArray{IRObject{"k": IRString("a\xffb")}}, "UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestMarshalCanonicalDistinctStringsDistinctEncodings(t *testing.T) {
	inputs := []string{"caf\u00e9", "cafe", "caf\u00e9 ", "\u00e9", "\ufffd"}
	seen := map[string]string{}
	for _, in := range inputs {
		out, err := MarshalCanonical(IRString(in))
		require.NoError(t, err)
		prev, dup := seen[string(out)]
		assert.False(t, dup, "%q and %q share an encoding", prev, in)
		seen[string(out)] = in
	}
}

func TestMarshalCanonicalIdempotency(t *testing.T) {
	calls := []Call{
		NewCall("state", "set", IRString("greeting"), IRString("hello")),
		NewCall("timelock", "update_delay", IRInt(7200)),
		NewCall("vault", "configure", IRObject{
			"limits": IRArray{IRInt(1), IRInt(2)},
			"owner":  IRString("caf\u00e9"),
		}),
	}

	for _, call := range calls {
		canonical1, err := MarshalCanonical(call.canonical())
		require.NoError(t, err)

		val, err := UnmarshalIRValue(canonical1)
		require.NoError(t, err)

		canonical2, err := MarshalCanonical(val)
		require.NoError(t, err)

		assert.Equal(t, canonical1, canonical2, "canonical marshaling must be idempotent")
	}
}

// FuzzCanonicalCallArgs checks that a call validates exactly when its
// encoding succeeds, and that accepted encodings are stable.
func FuzzCanonicalCallArgs(f *testing.F) {
	f.Add(`["k",1]`)
	f.Add(`[{"nested":{"deep":[true,false]}}]`)
	f.Add(`["caf\u00e9"]`)
	f.Add(`["cafe\u0301"]`)

	f.Fuzz(func(t *testing.T, argsJSON string) {
		val, err := UnmarshalIRValue([]byte(argsJSON))
		if err != nil {
			t.Skip()
		}
		args, ok := val.(IRArray)
		if !ok {
			t.Skip()
		}
		call := NewCall("state", "set", args...)

		encoded, encErr := MarshalCanonical(call.canonical())
		if validErr := call.Validate(); validErr != nil {
			require.Error(t, encErr, "invalid call encoded: %v", validErr)
			return
		}
		require.NoError(t, encErr)

		decoded, err := UnmarshalIRValue(encoded)
		require.NoError(t, err)
		again, err := MarshalCanonical(decoded)
		require.NoError(t, err)
		assert.Equal(t, encoded, again)
	})
}
