// Package event is the wire and in-memory representation of a Nostr event
// (NIP-01 §2): id/pubkey/created_at/kind/tags/content/sig, its canonical
// serialization for id hashing, and JSON (de)serialization via
// encoding/json rather than a hand-rolled byte scanner — the wire grammar
// here is small enough that the standard decoder plus the raw-frame policy
// checks in encoders/text cover the spec's invariants without a bespoke
// parser.
package event

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/minio/sha256-simd"

	"nostrium.dev/encoders/hex"
	"nostrium.dev/encoders/kind"
	"nostrium.dev/encoders/tags"
	"nostrium.dev/encoders/timestamp"
	"nostrium.dev/interfaces/signer"
	"nostrium.dev/utils/errorf"
)

// E is a single Nostr event.
type E struct {
	Id        []byte // 32 bytes raw
	Pubkey    []byte // 32 bytes raw
	CreatedAt timestamp.T
	Kind      kind.T
	Tags      *tags.T
	Content   []byte
	Sig       []byte // 64 bytes raw
}

// New builds an empty event with an initialized tag list.
func New() *E { return &E{Tags: tags.New()} }

// Serialize renders the canonical id-hashing form:
// [0, pubkey, created_at, kind, tags, content], compact JSON, no whitespace.
func (e *E) Serialize() []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('[')
	buf.WriteByte('0')
	buf.WriteByte(',')
	buf.WriteByte('"')
	buf.WriteString(hex.Enc(e.Pubkey))
	buf.WriteByte('"')
	buf.WriteByte(',')
	buf.WriteString(e.CreatedAt.String())
	buf.WriteByte(',')
	writeInt(buf, int64(e.Kind))
	buf.WriteByte(',')
	writeTagsJSON(buf, e.Tags)
	buf.WriteByte(',')
	writeJSONString(buf, e.Content)
	buf.WriteByte(']')
	return buf.Bytes()
}

func writeInt(buf *bytes.Buffer, v int64) {
	b, _ := json.Marshal(v)
	buf.Write(b)
}

func writeTagsJSON(buf *bytes.Buffer, t *tags.T) {
	b, _ := json.Marshal(t.Strings())
	buf.Write(b)
}

func writeJSONString(buf *bytes.Buffer, content []byte) {
	b, _ := json.Marshal(string(content))
	buf.Write(b)
}

// ComputeId hashes the canonical serialization with SHA-256 (minio's
// assembly-accelerated implementation, a drop-in for crypto/sha256).
func (e *E) ComputeId() []byte {
	sum := sha256.Sum256(e.Serialize())
	return sum[:]
}

// IdMatches reports whether e.Id equals the recomputed hash of the
// canonical serialization.
func (e *E) IdMatches() bool {
	return bytes.Equal(e.Id, e.ComputeId())
}

// Sign computes e.Id, signs it with s, and sets e.Sig and e.Pubkey.
func (e *E) Sign(s signer.I) error {
	e.Pubkey = s.Pub()
	e.Id = e.ComputeId()
	sig, err := s.Sign(e.Id)
	if err != nil {
		return err
	}
	e.Sig = sig
	return nil
}

// VerifySignature checks e.Sig against e.Id and e.Pubkey using s. It does
// not recompute e.Id; call IdMatches first.
func (e *E) VerifySignature(s signer.I) (bool, error) {
	if err := s.InitPub(e.Pubkey); err != nil {
		return false, err
	}
	return s.Verify(e.Id, e.Sig)
}

// Clone deep-copies the event.
func (e *E) Clone() *E {
	c := &E{
		Id:        append([]byte(nil), e.Id...),
		Pubkey:    append([]byte(nil), e.Pubkey...),
		CreatedAt: e.CreatedAt,
		Kind:      e.Kind,
		Tags:      e.Tags.Clone(),
		Content:   append([]byte(nil), e.Content...),
		Sig:       append([]byte(nil), e.Sig...),
	}
	return c
}

// wireEvent is the JSON-tagged mirror used for Marshal/Unmarshal.
type wireEvent struct {
	Id        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int64      `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// MarshalJSON renders the event in NIP-01 object form.
func (e *E) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Id:        hex.Enc(e.Id),
		Pubkey:    hex.Enc(e.Pubkey),
		CreatedAt: e.CreatedAt.I64(),
		Kind:      int64(e.Kind),
		Tags:      e.Tags.Strings(),
		Content:   string(e.Content),
		Sig:       hex.Enc(e.Sig),
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the NIP-01 object form. It does not validate the id
// hash or signature — callers run those checks explicitly as pipeline
// stages.
func (e *E) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return errorf.E("invalid event json: %w", err)
	}
	id, err := hex.Dec(w.Id)
	if err != nil {
		return errorf.E("invalid event id: %w", err)
	}
	pk, err := hex.Dec(w.Pubkey)
	if err != nil {
		return errorf.E("invalid event pubkey: %w", err)
	}
	sig, err := hex.Dec(w.Sig)
	if err != nil {
		return errorf.E("invalid event sig: %w", err)
	}
	e.Id = id
	e.Pubkey = pk
	e.CreatedAt = timestamp.FromUnix(w.CreatedAt)
	e.Kind = kind.T(w.Kind)
	e.Tags = tags.FromStrings(w.Tags)
	e.Content = []byte(w.Content)
	e.Sig = sig
	return nil
}

// Events is a slice of events with the newest-first/oldest-first sort
// orders the store's query path needs.
type Events []*E

func (ev Events) Len() int      { return len(ev) }
func (ev Events) Swap(i, j int) { ev[i], ev[j] = ev[j], ev[i] }

// Descending sorts events newest-first by created_at, then by id ascending
// for ties — the order NIP-01 REQ results are returned in.
type Descending struct{ Events }

func (d Descending) Less(i, j int) bool {
	if d.Events[i].CreatedAt != d.Events[j].CreatedAt {
		return d.Events[i].CreatedAt > d.Events[j].CreatedAt
	}
	return bytes.Compare(d.Events[i].Id, d.Events[j].Id) < 0
}

// SortDescending sorts ev in place, newest first.
func SortDescending(ev Events) { sort.Sort(Descending{ev}) }

// DTag returns the event's "d" tag value, or empty for kind-0/implicit d="".
func (e *E) DTag() string {
	if t := e.Tags.GetFirst("d"); t != nil {
		return string(t.Value())
	}
	return ""
}
