package okenvelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarshalParseRoundTrip(t *testing.T) {
	o := New("deadbeef", true, "")
	b, err := o.Marshal()
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &arr))
	require.Len(t, arr, 4)
	assert.Equal(t, `"OK"`, string(arr[0]))

	got, err := Parse(arr[1:])
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got.EventId)
	assert.True(t, got.Accepted)
	assert.Equal(t, "", got.Message)
}

func TestMarshalParseRejectedWithMessage(t *testing.T) {
	o := New("deadbeef", false, "blocked: rate-limited")
	b, err := o.Marshal()
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &arr))

	got, err := Parse(arr[1:])
	require.NoError(t, err)
	assert.False(t, got.Accepted)
	assert.Equal(t, "blocked: rate-limited", got.Message)
}

func TestParseRejectsWrongArity(t *testing.T) {
	_, err := Parse([]json.RawMessage{[]byte(`"id"`), []byte(`true`)})
	assert.Error(t, err)
}
