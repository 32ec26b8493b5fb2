package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeParser_Parse(t *testing.T) {
	baseDate := time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	noronha := time.FixedZone("FNT", -2*60*60)

	tests := []struct {
		name     string
		parser   TimeParser
		in       string
		expected time.Time
	}{
		{"hour minute", TimeParser{BaseDate: baseDate}, "14:30", time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)},
		{"single digit hour", TimeParser{BaseDate: baseDate}, "9:05", time.Date(2024, 5, 10, 9, 5, 0, 0, time.UTC)},
		{"surrounding spaces", TimeParser{BaseDate: baseDate}, " 9:05 ", time.Date(2024, 5, 10, 9, 5, 0, 0, time.UTC)},
		{"full layout", TimeParser{Layout: "2006-01-02 15:04"}, "2024-05-11 08:00", time.Date(2024, 5, 11, 8, 0, 0, 0, time.UTC)},
		{"rfc3339 fallback", TimeParser{BaseDate: baseDate}, "2024-05-10T17:00:00Z", time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)},
		{"location", TimeParser{BaseDate: baseDate, Location: noronha}, "9:05", time.Date(2024, 5, 10, 9, 5, 0, 0, noronha)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parser.Parse(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestTimeParser_DefaultsBaseDateToClock(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 23, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	got, err := TimeParser{}.Parse("10:15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 1, 10, 15, 0, 0, time.UTC), got)
}

func TestTimeParser_BaseDateKeepsCalendarDay(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	tokyo := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name     string
		base     time.Time
		loc      *time.Location
		expected time.Time
	}{
		{"utc midnight west of utc", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), brt, time.Date(2024, 5, 10, 14, 0, 0, 0, brt)},
		{"late utc base west of utc", time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC), brt, time.Date(2024, 5, 10, 14, 0, 0, 0, brt)},
		{"base east of target zone", time.Date(2024, 5, 10, 0, 0, 0, 0, tokyo), time.UTC, time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TimeParser{BaseDate: tt.base, Location: tt.loc}.Parse("14:00")
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestTimeParser_Invalid(t *testing.T) {
	for _, in := range []string{"", "25:99", "yesterday", "14h30"} {
		_, err := TimeParser{BaseDate: testBase}.Parse(in)
		require.ErrorIs(t, err, ErrInvalidTimestamp, "input %q", in)
	}
}

func TestTimeParser_Format(t *testing.T) {
	p := TimeParser{}
	assert.Equal(t, "09:05", p.Format(time.Date(2024, 5, 10, 9, 5, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-10", TimeParser{Layout: "2006-01-02"}.Format(testBase))
}

func TestCoerce(t *testing.T) {
	raw := []RawRecord{
		{Timestamp: "14:02", Value: "3.5"},
		{Timestamp: "14:00", Value: "1"},
		{Timestamp: "14:01", Value: "NA"},
		{Timestamp: "14:01", Value: "2"},
		{Timestamp: "14:03", Value: "abc"},
		{Timestamp: "14:04", Value: ""},
		{Timestamp: "14:05", Value: "NaN"},
		{Timestamp: "14:06", Value: " 4 "},
	}

	s, c, err := Coerce("level", raw, TimeParser{BaseDate: testBase})
	require.NoError(t, err)

	assert.Equal(t, 4, c.Dropped)
	assert.Equal(t, testBase, c.Earliest)
	assert.Equal(t, "level", s.Name())
	assert.Equal(t, []float64{1, 2, 3.5, 4}, s.Values())
}

func TestCoerce_StableForEqualTimestamps(t *testing.T) {
	raw := []RawRecord{
		{Timestamp: "14:01", Value: "3"},
		{Timestamp: "14:00", Value: "1"},
		{Timestamp: "14:01", Value: "2"},
	}

	s, _, err := Coerce("level", raw, TimeParser{BaseDate: testBase})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 2}, s.Values())
}

func TestCoerce_InvalidTimestamp(t *testing.T) {
	raw := []RawRecord{
		{Timestamp: "14:00", Value: "1"},
		{Timestamp: "later", Value: "2"},
	}

	_, _, err := Coerce("level", raw, TimeParser{BaseDate: testBase})
	require.ErrorIs(t, err, ErrInvalidTimestamp)
	assert.Contains(t, err.Error(), "record 1")
}

func TestRecordsFromSeries(t *testing.T) {
	s := minuteSeries(1.5, 2)
	records := RecordsFromSeries(s, TimeParser{})

	assert.Equal(t, []Record{
		{Timestamp: "14:00", Value: 1.5},
		{Timestamp: "14:01", Value: 2},
	}, records)
}
