package hll

import (
	"crypto/sha256"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"nostrium.dev/encoders/hex"
)

func TestDeriveOffsetIsWithinRange(t *testing.T) {
	cases := []string{
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"30023:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:my-article",
		"some free-text search term",
	}
	for _, c := range cases {
		off := DeriveOffset(c)
		assert.GreaterOrEqual(t, off, 8)
		assert.LessOrEqual(t, off, 23)
	}
}

func TestDeriveOffsetIsDeterministic(t *testing.T) {
	target := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	assert.Equal(t, DeriveOffset(target), DeriveOffset(target))
}

func TestDeriveOffsetUsesPubkeyComponentOfACoordinate(t *testing.T) {
	pk := "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	plain := DeriveOffset(pk)
	coord := DeriveOffset("30023:" + pk + ":d-value")
	assert.Equal(t, plain, coord)
}

func TestBytesReturnsFixedSizeRegisterSet(t *testing.T) {
	h := New(8)
	assert.Len(t, h.Bytes(), registers)
}

func TestAddPubkeyIsIdempotentForSameInput(t *testing.T) {
	h := New(8)
	pk := make([]byte, 32)
	pk[8] = 5
	h.AddPubkey(pk)
	before := append([]byte(nil), h.Bytes()...)
	h.AddPubkey(pk)
	assert.Equal(t, before, h.Bytes())
}

func TestEstimateIsZeroForEmptySketch(t *testing.T) {
	h := New(8)
	assert.Equal(t, uint64(0), h.Estimate())
}

func TestEstimateApproximatesKnownCardinality(t *testing.T) {
	h := New(8)
	r := rand.New(rand.NewSource(1))
	const n = 5000
	for i := 0; i < n; i++ {
		sum := sha256.Sum256([]byte{byte(i), byte(i >> 8), byte(r.Int())})
		h.AddPubkey(sum[:])
	}
	est := h.Estimate()
	assert.Greater(t, est, uint64(n/2))
	assert.Less(t, est, uint64(n*2))
}

func TestMergeTakesPerRegisterMaxima(t *testing.T) {
	a := New(8)
	a.Register[0] = 3
	a.Register[1] = 1
	b := New(8)
	b.Register[0] = 2
	b.Register[1] = 5

	a.Merge(b)
	assert.Equal(t, byte(3), a.Register[0])
	assert.Equal(t, byte(5), a.Register[1])
}

func TestMergeIsNoOpForDifferentOffsets(t *testing.T) {
	a := New(8)
	a.Register[0] = 3
	b := New(9)
	b.Register[0] = 9

	a.Merge(b)
	assert.Equal(t, byte(3), a.Register[0])
}

func TestHexEncodingRoundTripOfSketchBytes(t *testing.T) {
	h := New(8)
	h.Register[0] = 42
	s := hex.Enc(h.Bytes())

	decoded, err := hex.Dec(s)
	assert.NoError(t, err)
	assert.Equal(t, h.Bytes(), decoded)
}
