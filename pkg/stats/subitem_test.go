package stats

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddFieldWise(t *testing.T) {
	a := SubItem{IndividualMeetings: 1, Lectures: 2, Seminars: 3, HealthEvents: 4}
	b := SubItem{IndividualMeetings: 10, Lectures: 20, Seminars: 30, HealthEvents: 40}

	require.Equal(t, SubItem{IndividualMeetings: 11, Lectures: 22, Seminars: 33, HealthEvents: 44}, Add(&a, &b))
	require.Equal(t, Add(&a, &b), Add(&b, &a))
}

func TestAddIdentityAndMissingOperands(t *testing.T) {
	a := SubItem{IndividualMeetings: 5, Lectures: 1}

	require.Equal(t, a, Add(&a, &Zero))
	require.Equal(t, a, Add(&a, nil))
	require.Equal(t, a, Add(nil, &a))
	require.Equal(t, Zero, Add(nil, nil))
}

func TestAddAssociative(t *testing.T) {
	a := SubItem{IndividualMeetings: 1, HealthEvents: 7}
	b := SubItem{Lectures: 3, Seminars: 2}
	c := SubItem{IndividualMeetings: 4, Seminars: 9}

	ab := Add(&a, &b)
	bc := Add(&b, &c)
	require.Equal(t, Add(&ab, &c), Add(&a, &bc))
}

func TestSubItemGetAndTotal(t *testing.T) {
	s := SubItem{IndividualMeetings: 1, Lectures: 2, Seminars: 3, HealthEvents: 4}

	require.EqualValues(t, 10, s.Total())
	require.EqualValues(t, 10, s.Get(FieldAll))
	require.EqualValues(t, 2, s.Get(FieldLectures))
	require.EqualValues(t, 0, s.Get(Field("unknown")))
	require.False(t, s.IsZero())
	require.True(t, Zero.IsZero())
}

func decodeInput(t *testing.T, raw string) SubItemInput {
	t.Helper()
	var in SubItemInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))
	return in
}

func TestValidateSubItem(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		valid bool
		field Field
	}{
		{name: "all zero", raw: `{"individualMeetings":0,"lectures":0,"seminars":0,"healthEvents":0}`, valid: true},
		{name: "positive", raw: `{"individualMeetings":3,"lectures":2,"seminars":1,"healthEvents":9}`, valid: true},
		{name: "missing field", raw: `{"individualMeetings":3,"lectures":2,"seminars":1}`, field: FieldHealthEvents},
		{name: "null field", raw: `{"individualMeetings":null,"lectures":2,"seminars":1,"healthEvents":0}`, field: FieldIndividualMeetings},
		{name: "quoted number", raw: `{"individualMeetings":1,"lectures":"2","seminars":1,"healthEvents":0}`, field: FieldLectures},
		{name: "fraction", raw: `{"individualMeetings":1,"lectures":2,"seminars":1.5,"healthEvents":0}`, field: FieldSeminars},
		{name: "negative", raw: `{"individualMeetings":-1,"lectures":2,"seminars":1,"healthEvents":0}`, field: FieldIndividualMeetings},
		{name: "at cap", raw: `{"individualMeetings":1000000000,"lectures":0,"seminars":0,"healthEvents":0}`, valid: true},
		{name: "above cap", raw: `{"individualMeetings":1000000001,"lectures":0,"seminars":0,"healthEvents":0}`, field: FieldIndividualMeetings},
		{name: "int64 max", raw: `{"individualMeetings":0,"lectures":9223372036854775807,"seminars":0,"healthEvents":0}`, field: FieldLectures},
		{name: "beyond int64", raw: `{"individualMeetings":0,"lectures":0,"seminars":99999999999999999999,"healthEvents":0}`, field: FieldSeminars},
		{name: "boolean", raw: `{"individualMeetings":true,"lectures":2,"seminars":1,"healthEvents":0}`, field: FieldIndividualMeetings},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := decodeInput(t, tc.raw)
			item, err := ValidateSubItem(in)
			require.Equal(t, tc.valid, IsValidSubItem(in))
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidSubItem))
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tc.field, vErr.Field)
			require.Equal(t, SubItem{}, item)
		})
	}
}

func TestAddSaturatesInsteadOfWrapping(t *testing.T) {
	big := SubItem{IndividualMeetings: math.MaxInt64, Lectures: math.MaxInt64 - 1, Seminars: 5}
	sum := Add(&big, &SubItem{IndividualMeetings: 1, Lectures: 7, Seminars: 2})
	require.Equal(t, SubItem{IndividualMeetings: math.MaxInt64, Lectures: math.MaxInt64, Seminars: 7}, sum)
	require.Equal(t, int64(math.MaxInt64), sum.Total())
	require.NoError(t, sum.Validate())
}

func TestSubItemValidateRejectsNegative(t *testing.T) {
	require.NoError(t, SubItem{Lectures: 1}.Validate())
	err := SubItem{Seminars: -2}.Validate()
	require.ErrorIs(t, err, ErrInvalidSubItem)
	require.Contains(t, err.Error(), "seminars")
}
