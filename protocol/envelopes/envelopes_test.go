package envelopes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyReturnsLabelAndRemainder(t *testing.T) {
	label, rest, err := Identify([]byte(`["REQ","sub1",{"kinds":[1]}]`))
	require.NoError(t, err)
	assert.Equal(t, L("REQ"), label)
	require.Len(t, rest, 2)
	assert.Equal(t, `"sub1"`, string(rest[0]))
}

func TestIdentifyRejectsEmptyArray(t *testing.T) {
	_, _, err := Identify([]byte(`[]`))
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestIdentifyRejectsNonStringLabel(t *testing.T) {
	_, _, err := Identify([]byte(`[123,"x"]`))
	assert.ErrorIs(t, err, ErrUnrecognized)
}

func TestIdentifyRejectsInvalidJSON(t *testing.T) {
	_, _, err := Identify([]byte(`not json`))
	assert.Error(t, err)
}

func TestTrimQuotesStripsSurroundingQuotes(t *testing.T) {
	assert.Equal(t, "sub1", TrimQuotes([]byte(`"sub1"`)))
}
