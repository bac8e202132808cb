package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvMapJSONRoundTrip(t *testing.T) {
	var m EnvMap
	require.NoError(t, json.Unmarshal([]byte(`{"Z": "1", "A": "${Z}", "M": "3"}`), &m))

	require.Len(t, m, 3)
	assert.Equal(t, "Z", m[0].Name)
	assert.Equal(t, "A", m[1].Name)
	assert.Equal(t, "M", m[2].Name)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Z": "1", "A": "${Z}", "M": "3"}`, string(out))

	// Declaration order survives the round trip.
	var again EnvMap
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, m, again)
}

func TestEnvMapLookup(t *testing.T) {
	m := EnvMap{{Name: "A", Value: "1"}}
	v, ok := m.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = m.Lookup("B")
	assert.False(t, ok)
}

func TestStepJSONShorthand(t *testing.T) {
	var s Step
	require.NoError(t, json.Unmarshal([]byte(`"echo hi"`), &s))
	assert.Equal(t, StepShell, s.Type)
	assert.Equal(t, "echo hi", s.Script)
}

func TestStepUnknownType(t *testing.T) {
	var s Step
	err := json.Unmarshal([]byte(`{"type": "docker", "script": "x"}`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestStepLabel(t *testing.T) {
	assert.Equal(t, "named", Step{Type: StepShell, Name: "named", Script: "x"}.Label())
	assert.Equal(t, "echo hi", Step{Type: StepShell, Script: "echo hi"}.Label())
	assert.Equal(t, "hello", Step{Type: StepLog, Message: "hello"}.Label())
	assert.Equal(t, "dir app", Step{Type: StepDir, Path: "app"}.Label())
}
