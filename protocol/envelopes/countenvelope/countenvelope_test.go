package countenvelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrium.dev/encoders/filter"
	"nostrium.dev/encoders/kind"
)

func TestRequestMarshalParseRoundTrip(t *testing.T) {
	f := filter.New()
	f.Kinds = []kind.T{1}
	req := &Request{SubscriptionId: "sub1", Filters: []*filter.F{f}}

	b, err := req.Marshal()
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &arr))
	assert.Equal(t, `"COUNT"`, string(arr[0]))

	got, err := ParseRequest(arr[1:])
	require.NoError(t, err)
	assert.Equal(t, "sub1", got.SubscriptionId)
	require.Len(t, got.Filters, 1)
}

func TestResponseMarshalParseRoundTripWithoutHll(t *testing.T) {
	resp := &Response{SubscriptionId: "sub1", Count: 42}
	b, err := resp.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hll")

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &arr))
	got, err := ParseResponse(arr[1:])
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Count)
	assert.Nil(t, got.Hll)
}

func TestResponseMarshalParseRoundTripWithHll(t *testing.T) {
	sketch := make([]byte, 256)
	sketch[3] = 7
	resp := &Response{SubscriptionId: "sub1", Count: 9, Hll: sketch}

	b, err := resp.Marshal()
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(b, &arr))
	got, err := ParseResponse(arr[1:])
	require.NoError(t, err)
	assert.Equal(t, sketch, got.Hll)
}

func TestParseRequestRejectsMissingFilter(t *testing.T) {
	_, err := ParseRequest([]json.RawMessage{[]byte(`"sub1"`)})
	assert.Error(t, err)
}
