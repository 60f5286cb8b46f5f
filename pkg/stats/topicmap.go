package stats

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// TopicMap maps a topic identifier to its counters for one report or aggregate.
type TopicMap map[string]SubItem

// Clone returns an independent copy. A nil map clones to nil.
func (m TopicMap) Clone() TopicMap {
	if m == nil {
		return nil
	}
	out := make(TopicMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Total adds every SubItem in the map.
func (m TopicMap) Total() SubItem {
	var total SubItem
	for _, v := range m {
		total = total.Plus(v)
	}
	return total
}

// Keys returns the topic identifiers in lexical order.
func (m TopicMap) Keys() []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// MergeMaps returns a new map holding the per-topic sum of m1 and m2. Keys found
// in only one side are carried through unchanged. Neither input is modified.
func MergeMaps(m1, m2 TopicMap) TopicMap {
	out := make(TopicMap, len(m1)+len(m2))
	for k, v := range m1 {
		out[k] = v
	}
	for k, v := range m2 {
		if existing, ok := out[k]; ok {
			out[k] = Add(&existing, &v)
			continue
		}
		out[k] = v
	}
	return out
}

// DecodeTopicMap strictly decodes a JSON object of topic id to SubItem. Every
// entry must pass ValidateSubItem; the error names the offending topic.
func DecodeTopicMap(raw []byte) (TopicMap, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return TopicMap{}, nil
	}
	var inputs map[string]SubItemInput
	if err := json.Unmarshal(trimmed, &inputs); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("data must be an object of topic counters: %v", err)}
	}
	out := make(TopicMap, len(inputs))
	for _, id := range lo.Keys(inputs) {
		if id == "" {
			return nil, &ValidationError{Reason: "topic id must not be empty"}
		}
		item, err := ValidateSubItem(inputs[id])
		if err != nil {
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				vErr.TopicID = id
			}
			return nil, err
		}
		out[id] = item
	}
	return out, nil
}

// Value stores the map as JSON.
func (m TopicMap) Value() (driver.Value, error) {
	if m == nil {
		m = TopicMap{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal topic map: %w", err)
	}
	return data, nil
}

// Scan decodes a stored payload, accepting every historical encoding handled by DecodeLegacy.
func (m *TopicMap) Scan(value interface{}) error {
	if value == nil {
		*m = TopicMap{}
		return nil
	}
	var data string
	switch v := value.(type) {
	case []byte:
		data = string(v)
	case string:
		data = v
	default:
		return fmt.Errorf("unsupported type %T for TopicMap", value)
	}
	decoded, err := DecodeLegacy(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
