package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var counterKeys = map[string]Field{
	string(FieldIndividualMeetings): FieldIndividualMeetings,
	string(FieldLectures):           FieldLectures,
	string(FieldSeminars):           FieldSeminars,
	string(FieldHealthEvents):       FieldHealthEvents,
}

// DecodeLegacy decodes a stored report payload into a TopicMap. It accepts:
//
//   - a flat object {topicId: SubItem},
//   - the nested shape {category: {topic: SubItem}}, flattened to "category.topic",
//   - category-level leaves {category: SubItem}, kept under "category",
//   - any of the above wrapped once more in a JSON string.
//
// Rows written by older clients were never validated, so stored counters are
// read leniently and a bad value never fails the row:
//
//   - an object with at least one counter key is a leaf; other keys are ignored,
//   - missing, null and non-numeric counters read as zero,
//   - numeric strings are parsed and fractions are truncated toward zero,
//   - negatives read as zero and values above MaxCounter read as MaxCounter,
//   - entries that are not objects are skipped.
//
// Only a payload that is not a JSON object at all is an error.
func DecodeLegacy(raw string) (TopicMap, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return TopicMap{}, nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return nil, fmt.Errorf("decode legacy payload: %w", err)
		}
		trimmed = strings.TrimSpace(inner)
		if trimmed == "" || trimmed == "null" {
			return TopicMap{}, nil
		}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &top); err != nil {
		return nil, fmt.Errorf("decode legacy payload: %w", err)
	}

	out := make(TopicMap, len(top))
	for key, value := range top {
		entry, ok := asObject(value)
		if !ok {
			continue
		}
		if isLeaf(entry) {
			out.add(key, lenientSubItem(entry))
			continue
		}
		for topic, nested := range entry {
			if leaf, ok := asObject(nested); ok {
				out.add(key+TopicSeparator+topic, lenientSubItem(leaf))
			}
		}
	}
	return out, nil
}

func (m TopicMap) add(id string, item SubItem) {
	m[id] = Add(ptr(m[id]), &item)
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// isLeaf reports whether entry carries at least one counter key.
func isLeaf(entry map[string]json.RawMessage) bool {
	for k := range entry {
		if _, ok := counterKeys[k]; ok {
			return true
		}
	}
	return false
}

func lenientSubItem(entry map[string]json.RawMessage) SubItem {
	var out SubItem
	for k, raw := range entry {
		field, ok := counterKeys[k]
		if !ok {
			continue
		}
		value := lenientCounter(raw)
		switch field {
		case FieldIndividualMeetings:
			out.IndividualMeetings = value
		case FieldLectures:
			out.Lectures = value
		case FieldSeminars:
			out.Seminars = value
		case FieldHealthEvents:
			out.HealthEvents = value
		}
	}
	return out
}

func lenientCounter(raw json.RawMessage) int64 {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0
		}
		text = strings.TrimSpace(text)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= float64(MaxCounter) {
		return MaxCounter
	}
	return int64(math.Trunc(f))
}

func ptr(s SubItem) *SubItem {
	return &s
}
