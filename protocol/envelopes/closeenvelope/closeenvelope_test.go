package closeenvelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	c := &T{SubscriptionId: "sub1"}
	b, err := c.Marshal()
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &arr))
	assert.Equal(t, `"CLOSE"`, string(arr[0]))

	got, err := Parse(arr[1:])
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.SubscriptionId)
}

func TestParseRejectsWrongArity(t *testing.T) {
	_, err := Parse(nil)
	assert.Error(t, err)
}
