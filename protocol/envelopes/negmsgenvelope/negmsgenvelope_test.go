package negmsgenvelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	m := &T{SubscriptionId: "sub1", Msg: "deadbeef"}
	b, err := m.Marshal()
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &arr))
	assert.Equal(t, `"NEG-MSG"`, string(arr[0]))

	got, err := Parse(arr[1:])
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.SubscriptionId)
	assert.Equal(t, "deadbeef", got.Msg)
}

func TestParseRejectsWrongArity(t *testing.T) {
	_, err := Parse([]json.RawMessage{[]byte(`"sub1"`)})
	assert.Error(t, err)
}
