// Package countenvelope is the ["COUNT", sub_id, filter, ...] request frame
// and its ["COUNT", sub_id, {"count": n}] reply, per NIP-45.
package countenvelope

import (
	"encoding/base64"
	"encoding/json"

	"nostrium.dev/encoders/filter"
	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "COUNT"

// Request is a parsed COUNT request.
type Request struct {
	SubscriptionId string
	Filters        []*filter.F
}

// ParseRequest decodes the remainder of a ["COUNT", ...] request frame.
func ParseRequest(rest []json.RawMessage) (*Request, error) {
	if len(rest) < 2 {
		return nil, errorf.E("COUNT expects a sub_id and at least one filter")
	}
	var subID string
	if err := json.Unmarshal(rest[0], &subID); err != nil {
		return nil, err
	}
	filters := make([]*filter.F, 0, len(rest)-1)
	for _, raw := range rest[1:] {
		f := filter.New()
		if err := json.Unmarshal(raw, f); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return &Request{SubscriptionId: subID, Filters: filters}, nil
}

// Marshal renders a ["COUNT", sub_id, filter, ...] request frame.
func (r *Request) Marshal() ([]byte, error) {
	arr := make([]any, 0, len(r.Filters)+2)
	arr = append(arr, L, r.SubscriptionId)
	for _, f := range r.Filters {
		arr = append(arr, f)
	}
	return json.Marshal(arr)
}

// countPayload is the reply's inline object. Hll carries the base64 of the
// 256-byte NIP-45 HyperLogLog register set, present only when the relay
// built one for this request's filter.
type countPayload struct {
	Count int64  `json:"count"`
	Hll   string `json:"hll,omitempty"`
}

// Response is the relay's ["COUNT", sub_id, {"count": n, "hll"?: base64}] reply.
type Response struct {
	SubscriptionId string
	Count          int64
	// Hll, when non-nil, is the 256-byte register set of a HyperLogLog
	// sketch built over the matched events' pubkeys.
	Hll []byte
}

// Marshal renders the COUNT response frame.
func (r *Response) Marshal() ([]byte, error) {
	p := countPayload{Count: r.Count}
	if r.Hll != nil {
		p.Hll = base64.StdEncoding.EncodeToString(r.Hll)
	}
	return json.Marshal([]any{L, r.SubscriptionId, p})
}

// ParseResponse decodes a COUNT response frame's remainder.
func ParseResponse(rest []json.RawMessage) (*Response, error) {
	if len(rest) != 2 {
		return nil, errorf.E("COUNT response expects two elements, got %d", len(rest))
	}
	var subID string
	if err := json.Unmarshal(rest[0], &subID); err != nil {
		return nil, err
	}
	var p countPayload
	if err := json.Unmarshal(rest[1], &p); err != nil {
		return nil, err
	}
	resp := &Response{SubscriptionId: subID, Count: p.Count}
	if p.Hll != "" {
		if b, err := base64.StdEncoding.DecodeString(p.Hll); err == nil {
			resp.Hll = b
		}
	}
	return resp, nil
}
