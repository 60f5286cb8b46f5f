package stats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeLegacyFlat(t *testing.T) {
	m, err := DecodeLegacy(`{"t1":{"individualMeetings":1,"lectures":2,"seminars":3,"healthEvents":4}}`)
	require.NoError(t, err)
	require.Equal(t, TopicMap{"t1": {IndividualMeetings: 1, Lectures: 2, Seminars: 3, HealthEvents: 4}}, m)
}

func TestDecodeLegacyNestedShape(t *testing.T) {
	raw := `{
		"immunization": {
			"childrenVaccination": {"individualMeetings": 2, "lectures": 1, "seminars": 0, "healthEvents": 0},
			"otherVaccines": {"lectures": 4}
		},
		"others": {"individualMeetings": 1, "lectures": 0, "seminars": 0, "healthEvents": 6}
	}`

	m, err := DecodeLegacy(raw)
	require.NoError(t, err)
	require.Equal(t, TopicMap{
		"immunization.childrenVaccination": {IndividualMeetings: 2, Lectures: 1},
		"immunization.otherVaccines":       {Lectures: 4},
		"others":                           {IndividualMeetings: 1, HealthEvents: 6},
	}, m)
}

func TestDecodeLegacyJSONStringWrapped(t *testing.T) {
	inner := `{"t1":{"individualMeetings":"3","lectures":2.0}}`
	wrapped, err := json.Marshal(inner)
	require.NoError(t, err)

	m, err := DecodeLegacy(string(wrapped))
	require.NoError(t, err)
	require.Equal(t, TopicMap{"t1": {IndividualMeetings: 3, Lectures: 2}}, m)
}

func TestDecodeLegacyEmptyValues(t *testing.T) {
	for _, raw := range []string{"", "null", `""`, "  "} {
		m, err := DecodeLegacy(raw)
		require.NoError(t, err)
		require.Empty(t, m)
	}

	m, err := DecodeLegacy(`{"mentalHealth":{},"t1":null}`)
	require.NoError(t, err)
	require.Empty(t, m)
}

func TestDecodeLegacyRejectsNonObjectPayload(t *testing.T) {
	_, err := DecodeLegacy(`not json`)
	require.Error(t, err)

	_, err = DecodeLegacy(`[1,2]`)
	require.Error(t, err)
}

func TestDecodeLegacyTruncatesFractions(t *testing.T) {
	m, err := DecodeLegacy(`{"maternalChildHealth":{"breastfeeding":{"individualMeetings":1.5,"lectures":"2.9","seminars":0.4,"healthEvents":3}}}`)
	require.NoError(t, err)
	require.Equal(t, TopicMap{"maternalChildHealth.breastfeeding": {IndividualMeetings: 1, Lectures: 2, HealthEvents: 3}}, m)
}

func TestDecodeLegacyIgnoresUnknownKeysOnLeaves(t *testing.T) {
	m, err := DecodeLegacy(`{
		"t1": {"individualMeetings": 2, "lectures": 1, "note": "x"},
		"immunization": {"otherVaccines": {"seminars": 3, "updatedBy": {"id": 7}}}
	}`)
	require.NoError(t, err)
	require.Equal(t, TopicMap{
		"t1":                         {IndividualMeetings: 2, Lectures: 1},
		"immunization.otherVaccines": {Seminars: 3},
	}, m)
}

func TestDecodeLegacyClampsOutOfRangeCounters(t *testing.T) {
	m, err := DecodeLegacy(`{"t1":{"individualMeetings":-3,"lectures":"-1","seminars":1e12,"healthEvents":"abc"}}`)
	require.NoError(t, err)
	require.Equal(t, TopicMap{"t1": {Seminars: MaxCounter}}, m)
	require.NoError(t, m["t1"].Validate())
}

func TestDecodeLegacySkipsNonObjectEntries(t *testing.T) {
	m, err := DecodeLegacy(`{"t1": 5, "t2": "x", "t3": {"lectures": 2}, "cat": {"topic": [1], "ok": {"seminars": 1}}}`)
	require.NoError(t, err)
	require.Equal(t, TopicMap{"t3": {Lectures: 2}, "cat.ok": {Seminars: 1}}, m)
}

func TestScanUsesLegacyDecoding(t *testing.T) {
	var m TopicMap
	require.NoError(t, m.Scan([]byte(`{"immunization":{"otherVaccines":{"seminars":2}}}`)))
	require.Equal(t, TopicMap{"immunization.otherVaccines": {Seminars: 2}}, m)

	var fractional TopicMap
	require.NoError(t, fractional.Scan([]byte(`{"t1":{"individualMeetings":1.5,"note":"x"}}`)))
	require.Equal(t, TopicMap{"t1": {IndividualMeetings: 1}}, fractional)
}
