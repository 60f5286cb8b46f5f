// Package stats sums periodic outreach statistics submitted by health centers.
//
// Everything in this package is a pure transformation over values that were
// already fetched: no function performs I/O, holds locks or mutates its inputs,
// so the helpers are safe to call from concurrent read paths.
package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxCounter is the largest value accepted for a single counter of one report.
// Sums of accepted counters saturate at math.MaxInt64 instead of wrapping.
const MaxCounter int64 = 1_000_000_000

// ErrInvalidSubItem is returned (wrapped) when a counter record is missing a field
// or carries a value that is not a non-negative integer.
var ErrInvalidSubItem = errors.New("invalid sub item")

// SubItem is the atomic statistic: four counters of outreach activity.
type SubItem struct {
	IndividualMeetings int64 `json:"individualMeetings"`
	Lectures           int64 `json:"lectures"`
	Seminars           int64 `json:"seminars"`
	HealthEvents       int64 `json:"healthEvents"`
}

// Zero is the identity element of Add.
var Zero = SubItem{}

// Add returns the field-wise sum of a and b. A nil operand counts as Zero.
func Add(a, b *SubItem) SubItem {
	var out SubItem
	if a != nil {
		out = *a
	}
	if b != nil {
		out.IndividualMeetings = saturatingAdd(out.IndividualMeetings, b.IndividualMeetings)
		out.Lectures = saturatingAdd(out.Lectures, b.Lectures)
		out.Seminars = saturatingAdd(out.Seminars, b.Seminars)
		out.HealthEvents = saturatingAdd(out.HealthEvents, b.HealthEvents)
	}
	return out
}

func saturatingAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// Plus is the value form of Add.
func (s SubItem) Plus(o SubItem) SubItem {
	return Add(&s, &o)
}

// Total sums the four counters.
func (s SubItem) Total() int64 {
	total := saturatingAdd(s.IndividualMeetings, s.Lectures)
	total = saturatingAdd(total, s.Seminars)
	return saturatingAdd(total, s.HealthEvents)
}

// IsZero reports whether every counter is zero.
func (s SubItem) IsZero() bool {
	return s == Zero
}

// Field names one counter of a SubItem, or all of them.
type Field string

const (
	FieldIndividualMeetings Field = "individualMeetings"
	FieldLectures           Field = "lectures"
	FieldSeminars           Field = "seminars"
	FieldHealthEvents       Field = "healthEvents"
	FieldAll                Field = "all"
)

// Fields lists the counters in export column order.
var Fields = []Field{FieldIndividualMeetings, FieldLectures, FieldSeminars, FieldHealthEvents}

// Get returns the counter named by f. FieldAll yields Total.
func (s SubItem) Get(f Field) int64 {
	switch f {
	case FieldIndividualMeetings:
		return s.IndividualMeetings
	case FieldLectures:
		return s.Lectures
	case FieldSeminars:
		return s.Seminars
	case FieldHealthEvents:
		return s.HealthEvents
	case FieldAll:
		return s.Total()
	default:
		return 0
	}
}

// SubItemInput is the wire form of a SubItem. Raw values keep absent fields
// distinguishable from zero ones.
type SubItemInput struct {
	IndividualMeetings json.RawMessage `json:"individualMeetings"`
	Lectures           json.RawMessage `json:"lectures"`
	Seminars           json.RawMessage `json:"seminars"`
	HealthEvents       json.RawMessage `json:"healthEvents"`
}

// ValidationError describes why a SubItem was rejected.
type ValidationError struct {
	TopicID string
	Field   Field
	Reason  string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidSubItem.Error())
	if e.TopicID != "" {
		b.WriteString(" for topic ")
		b.WriteString(strconv.Quote(e.TopicID))
	}
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(string(e.Field))
	}
	if e.Reason != "" {
		b.WriteString(" ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrInvalidSubItem.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSubItem
}

// ValidateSubItem converts the wire form into a SubItem. Every field must be
// present and hold an integer literal between 0 and MaxCounter; strings,
// fractions and negatives are rejected rather than coerced.
func ValidateSubItem(in SubItemInput) (SubItem, error) {
	var out SubItem
	fields := []struct {
		name Field
		raw  json.RawMessage
		dst  *int64
	}{
		{FieldIndividualMeetings, in.IndividualMeetings, &out.IndividualMeetings},
		{FieldLectures, in.Lectures, &out.Lectures},
		{FieldSeminars, in.Seminars, &out.Seminars},
		{FieldHealthEvents, in.HealthEvents, &out.HealthEvents},
	}
	for _, f := range fields {
		value, err := parseCounter(f.raw)
		if err != nil {
			return SubItem{}, &ValidationError{Field: f.name, Reason: err.Error()}
		}
		*f.dst = value
	}
	return out, nil
}

// IsValidSubItem reports whether ValidateSubItem accepts in.
func IsValidSubItem(in SubItemInput) bool {
	_, err := ValidateSubItem(in)
	return err == nil
}

// Validate checks an already-typed SubItem. Only the sign can be wrong here.
func (s SubItem) Validate() error {
	for _, f := range Fields {
		if s.Get(f) < 0 {
			return &ValidationError{Field: f, Reason: "must not be negative"}
		}
	}
	return nil
}

func parseCounter(raw json.RawMessage) (int64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, errors.New("is required")
	}
	value, err := strconv.ParseInt(trimmed, 10, 64)
	outOfRange := errors.Is(err, strconv.ErrRange)
	negative := strings.HasPrefix(trimmed, "-")
	switch {
	case (err == nil || outOfRange) && negative:
		return 0, errors.New("must not be negative")
	case outOfRange || value > MaxCounter:
		return 0, fmt.Errorf("must not exceed %d", MaxCounter)
	case err != nil:
		return 0, fmt.Errorf("must be an integer, got %s", trimmed)
	}
	return value, nil
}
