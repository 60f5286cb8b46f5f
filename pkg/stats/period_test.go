package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	instant := time.Date(2024, 5, 30, 22, 30, 0, 0, time.UTC) // already May 31st at UTC+3

	r, err := PeriodQuery{Day: &instant}.Resolve(loc)
	require.NoError(t, err)
	require.Equal(t, PeriodDay, r.Kind)
	require.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, loc), r.Start)
	require.Equal(t, time.Date(2024, 5, 31, 23, 59, 59, 999_000_000, loc), r.End)
	require.Equal(t, "2024-05-31", r.Label())
}

func TestResolveMonthLastDay(t *testing.T) {
	cases := []struct {
		year    int
		month   int
		lastDay int
	}{
		{2024, 2, 29},
		{2023, 2, 28},
		{2024, 4, 30},
		{2024, 12, 31},
	}
	for _, tc := range cases {
		r, err := PeriodQuery{Month: tc.month, Year: tc.year}.Resolve(time.UTC)
		require.NoError(t, err)
		require.Equal(t, time.Date(tc.year, time.Month(tc.month), 1, 0, 0, 0, 0, time.UTC), r.Start)
		require.Equal(t, time.Date(tc.year, time.Month(tc.month), tc.lastDay, 23, 59, 59, 999_000_000, time.UTC), r.End)
	}
}

func TestResolveDayTakesPrecedence(t *testing.T) {
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	r, err := PeriodQuery{Day: &d, Month: 3, Year: 2024}.Resolve(time.UTC)
	require.NoError(t, err)
	require.Equal(t, PeriodDay, r.Kind)
}

func TestResolveWeek(t *testing.T) {
	r, err := PeriodQuery{Week: 1, Year: 2021}.Resolve(time.UTC)
	require.NoError(t, err)
	require.Equal(t, PeriodWeek, r.Kind)
	require.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), r.Start)
	require.Equal(t, time.Date(2021, 1, 10, 23, 59, 59, 999_000_000, time.UTC), r.End)
	require.Equal(t, "2021-W01", r.Label())

	r, err = PeriodQuery{Week: 53, Year: 2020}.Resolve(time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2020, 12, 28, 0, 0, 0, 0, time.UTC), r.Start)

	_, err = PeriodQuery{Week: 53, Year: 2021}.Resolve(time.UTC)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestResolveInvalid(t *testing.T) {
	cases := []PeriodQuery{
		{},
		{Year: 2024},
		{Month: 13, Year: 2024},
		{Month: 4},
		{Week: 10},
		{Week: 0, Month: 0, Year: 0},
	}
	for _, q := range cases {
		_, err := q.Resolve(time.UTC)
		require.ErrorIs(t, err, ErrInvalidPeriod)
	}
}

func TestRangeContainsIsInclusive(t *testing.T) {
	r := MonthRange(2024, time.May, time.UTC)
	require.True(t, r.Contains(r.Start))
	require.True(t, r.Contains(r.End))
	require.False(t, r.Contains(r.Start.Add(-time.Millisecond)))
	require.False(t, r.Contains(r.End.Add(time.Millisecond)))
	require.Equal(t, "2024-05", r.Label())
}

func TestPeriodStartFor(t *testing.T) {
	ts := time.Date(2024, 5, 16, 15, 4, 5, 0, time.UTC) // Thursday

	require.Equal(t, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC), PeriodStartFor(PeriodDay, ts, time.UTC))
	require.Equal(t, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), PeriodStartFor(PeriodWeek, ts, time.UTC))
	require.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), PeriodStartFor(PeriodMonth, ts, nil))
}
