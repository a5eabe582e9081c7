// Package reqenvelope is the ["REQ", sub_id, filter, ...] wire frame that
// opens or updates a subscription.
package reqenvelope

import (
	"encoding/json"

	"nostrium.dev/encoders/filter"
	"nostrium.dev/utils/errorf"
)

// L is this envelope's label.
const L = "REQ"

// T is a parsed REQ: a subscription id and one or more filters.
type T struct {
	SubscriptionId string
	Filters        []*filter.F
}

// Parse decodes the remainder of a ["REQ", ...] frame.
func Parse(rest []json.RawMessage) (*T, error) {
	if len(rest) < 2 {
		return nil, errorf.E("REQ expects a sub_id and at least one filter")
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
	return &T{SubscriptionId: subID, Filters: filters}, nil
}

// Marshal renders a ["REQ", sub_id, filter, ...] frame.
func (t *T) Marshal() ([]byte, error) {
	arr := make([]any, 0, len(t.Filters)+2)
	arr = append(arr, L, t.SubscriptionId)
	for _, f := range t.Filters {
		arr = append(arr, f)
	}
	return json.Marshal(arr)
}
