package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeMapsAddsSharedKeysAndCopiesOthers(t *testing.T) {
	m1 := TopicMap{
		"t1": {IndividualMeetings: 1, Lectures: 2},
		"t2": {Seminars: 3},
	}
	m2 := TopicMap{
		"t1": {IndividualMeetings: 4, HealthEvents: 1},
		"t3": {Lectures: 7},
	}

	merged := MergeMaps(m1, m2)
	require.Equal(t, TopicMap{
		"t1": {IndividualMeetings: 5, Lectures: 2, HealthEvents: 1},
		"t2": {Seminars: 3},
		"t3": {Lectures: 7},
	}, merged)
	require.Equal(t, merged, MergeMaps(m2, m1))
}

func TestMergeMapsDoesNotMutateInputs(t *testing.T) {
	m1 := TopicMap{"t1": {Lectures: 1}}
	m2 := TopicMap{"t1": {Lectures: 2}}

	merged := MergeMaps(m1, m2)
	merged["t9"] = SubItem{Seminars: 1}

	require.Equal(t, TopicMap{"t1": {Lectures: 1}}, m1)
	require.Equal(t, TopicMap{"t1": {Lectures: 2}}, m2)
}

func TestMergeMapsWithEmptyAndNil(t *testing.T) {
	m := TopicMap{"t1": {HealthEvents: 2}}

	require.Equal(t, m, MergeMaps(m, TopicMap{}))
	require.Equal(t, m, MergeMaps(nil, m))
	require.Empty(t, MergeMaps(nil, nil))
}

func TestTopicMapTotalAndClone(t *testing.T) {
	m := TopicMap{
		"b": {IndividualMeetings: 1, Lectures: 1},
		"a": {Seminars: 2, HealthEvents: 3},
	}
	require.Equal(t, SubItem{IndividualMeetings: 1, Lectures: 1, Seminars: 2, HealthEvents: 3}, m.Total())
	require.Equal(t, []string{"a", "b"}, m.Keys())

	clone := m.Clone()
	clone["a"] = SubItem{}
	require.Equal(t, SubItem{Seminars: 2, HealthEvents: 3}, m["a"])
	require.Nil(t, TopicMap(nil).Clone())
}

func TestDecodeTopicMap(t *testing.T) {
	m, err := DecodeTopicMap([]byte(`{"t1":{"individualMeetings":1,"lectures":2,"seminars":3,"healthEvents":4}}`))
	require.NoError(t, err)
	require.Equal(t, TopicMap{"t1": {IndividualMeetings: 1, Lectures: 2, Seminars: 3, HealthEvents: 4}}, m)

	empty, err := DecodeTopicMap([]byte(" null "))
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDecodeTopicMapNamesOffendingTopic(t *testing.T) {
	_, err := DecodeTopicMap([]byte(`{"ok":{"individualMeetings":1,"lectures":2,"seminars":3,"healthEvents":4},"bad":{"individualMeetings":1,"lectures":2,"seminars":3,"healthEvents":-4}}`))
	require.ErrorIs(t, err, ErrInvalidSubItem)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "bad", vErr.TopicID)
	require.Equal(t, FieldHealthEvents, vErr.Field)
}

func TestDecodeTopicMapRejectsNonObject(t *testing.T) {
	_, err := DecodeTopicMap([]byte(`[1,2,3]`))
	require.ErrorIs(t, err, ErrInvalidSubItem)
}

func TestTopicMapValueAndScan(t *testing.T) {
	m := TopicMap{"t1": {Lectures: 3}}
	value, err := m.Value()
	require.NoError(t, err)

	var decoded TopicMap
	require.NoError(t, decoded.Scan(value))
	require.Equal(t, m, decoded)

	require.NoError(t, decoded.Scan(nil))
	require.Empty(t, decoded)

	require.Error(t, decoded.Scan(42))
}
