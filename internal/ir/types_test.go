package ir

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationIDTextRoundTrip(t *testing.T) {
	id := MustHashOperation(NewCall("state", "noop"), ZeroOperationID, ZeroSalt)

	data, err := json.Marshal(map[string]OperationID{"id": id})
	require.NoError(t, err)
	assert.Contains(t, string(data), id.String())

	var decoded map[string]OperationID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded["id"])
}

func TestParseOperationID(t *testing.T) {
	id, err := ParseOperationID("")
	require.NoError(t, err)
	assert.True(t, id.IsZero())

	id, err = ParseOperationID("0")
	require.NoError(t, err)
	assert.True(t, id.IsZero())

	full := "0x" + strings.Repeat("ab", 32)
	id, err = ParseOperationID(full)
	require.NoError(t, err)
	assert.Equal(t, full, id.String())

	_, err = ParseOperationID("0x" + strings.Repeat("0", 65))
	assert.Error(t, err)

	_, err = ParseOperationID("0xzz")
	assert.Error(t, err)
}

func TestParseSaltPads(t *testing.T) {
	salt, err := ParseSalt("0x1")
	require.NoError(t, err)
	assert.Equal(t, byte(1), salt[31])
	assert.Equal(t, "0x"+strings.Repeat("0", 63)+"1", salt.String())
}

func TestSaltFromString(t *testing.T) {
	assert.Equal(t, SaltFromString("s1"), SaltFromString("s1"))
	assert.NotEqual(t, SaltFromString("s1"), SaltFromString("s2"))
	assert.Equal(t, "0xaf14c4d14f248d4ff6e3d1cc71b9bb9a8932416d8bc0783b651ac1e93662e9ea", SaltFromString("s1").String())
}

func TestSaltFromBytes(t *testing.T) {
	s := SaltFromBytes([]byte{0xde, 0xad})
	assert.Equal(t, byte(0xde), s[30])
	assert.Equal(t, byte(0xad), s[31])
	assert.False(t, s.IsZero())
	assert.True(t, SaltFromBytes(nil).IsZero())
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"proposer":      RoleProposer,
		"CANCELLER":     RoleCanceller,
		" executor ":    RoleExecutor,
		"admin":         RoleDefaultAdmin,
		"default_admin": RoleDefaultAdmin,
	}
	for in, want := range tests {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseRole("owner")
	assert.Error(t, err)
}

func TestOperationStateString(t *testing.T) {
	assert.Equal(t, "Unset", StateUnset.String())
	assert.Equal(t, "Waiting", StateWaiting.String())
	assert.Equal(t, "Ready", StateReady.String())
	assert.Equal(t, "Done", StateDone.String())
	assert.Equal(t, "OperationState(9)", OperationState(9).String())

	s, err := ParseOperationState("ready")
	require.NoError(t, err)
	assert.Equal(t, StateReady, s)

	_, err = ParseOperationState("pending")
	assert.Error(t, err)

	assert.False(t, StateUnset.Pending())
	assert.True(t, StateWaiting.Pending())
	assert.True(t, StateReady.Pending())
	assert.False(t, StateDone.Pending())
}

func TestCallValidate(t *testing.T) {
	assert.NoError(t, NewCall("state", "set").Validate())
	assert.Error(t, NewCall("", "set").Validate())
	assert.Error(t, NewCall("state", "").Validate())
	assert.Error(t, NewCall(OpenPrincipal, "set").Validate())

	assert.NoError(t, NewCall("state", "set", IRString("caf\u00e9"), IRObject{"k": IRArray{IRInt(1)}}).Validate())

	err := NewCall("state", "set", IRString("k"), IRObject{"v": IRArray{IRString("cafe\u0301")}}).Validate()
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "args[1]", ve.Field)
	assert.Contains(t, ve.Message, "NFC")

	err = NewCall("state", "set", IRArray{nil}).Validate()
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Message, "null")
}

func TestParseCallsRejectsNonCanonicalStrings(t *testing.T) {
	_, err := ParseCalls([]byte(`{"target":"state","selector":"set","args":["cafe\u0301"]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calls[0]")
}

func TestParseCalls(t *testing.T) {
	calls, err := ParseCalls([]byte(`[{"target":"state","selector":"set","args":["k",1]},{"target":"state","selector":"noop"}]`))
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, NewCall("state", "set", IRString("k"), IRInt(1)), calls[0])
	assert.Equal(t, IRArray{}, calls[1].Args)

	single, err := ParseCalls([]byte(`{"target":"state","selector":"noop","args":[]}`))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = ParseCalls([]byte(`[{"target":"state"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector")

	_, err = ParseCalls([]byte(`[{"target":"state","selector":"set","args":[1.5]}]`))
	assert.Error(t, err)
}
