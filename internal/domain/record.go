package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeLayout is the hour:minute stamp written by the sensor exporter,
// e.g. "9:05" or "14:30".
const DefaultTimeLayout = "15:04"

// RawRecord is one ingested reading before coercion. Fields are addressed by
// name; the value stays a string until Coerce decides whether it is numeric.
type RawRecord struct {
	Timestamp string `json:"timestamp"`
	Value     string `json:"value"`
}

// Record is one exported reading.
type Record struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Coercion reports what Coerce discarded.
type Coercion struct {
	// Dropped counts records whose value was missing or not numeric.
	Dropped int
	// Earliest is the smallest timestamp among all records, including dropped ones.
	Earliest time.Time
}

// TimeParser turns exported timestamps into instants. Time-of-day layouts
// (no date component) are anchored on the calendar date of BaseDate, read in
// BaseDate's own zone, which defaults to the current date of the package
// clock in Location. RFC 3339 is always accepted.
type TimeParser struct {
	Layout   string
	BaseDate time.Time
	Location *time.Location
}

// Parse parses a single timestamp.
func (p TimeParser) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	loc := p.location()
	layout := p.Layout
	if layout == "" {
		layout = DefaultTimeLayout
	}

	if t, err := time.ParseInLocation(layout, s, loc); err == nil {
		if t.Year() != 0 {
			return t, nil
		}
		base := p.BaseDate
		if base.IsZero() {
			base = clock.Now().In(loc)
		}
		y, m, d := base.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q does not match %q or RFC 3339: %w", s, layout, ErrInvalidTimestamp)
	}
	return t.In(loc), nil
}

// Format renders t with the parser's layout.
func (p TimeParser) Format(t time.Time) string {
	layout := p.Layout
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return t.In(p.location()).Format(layout)
}

func (p TimeParser) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Coerce parses raw records into a timestamp-sorted Series. Records with a
// missing or non-numeric value are dropped and counted; an unparseable
// timestamp fails the whole series.
func Coerce(name string, raw []RawRecord, parser TimeParser) (Series, Coercion, error) {
	var c Coercion
	samples := make([]Sample, 0, len(raw))
	for i, r := range raw {
		ts, err := parser.Parse(r.Timestamp)
		if err != nil {
			return Series{}, Coercion{}, fmt.Errorf("record %d: %w", i, err)
		}
		if c.Earliest.IsZero() || ts.Before(c.Earliest) {
			c.Earliest = ts
		}

		v, ok := parseValue(r.Value)
		if !ok {
			c.Dropped++
			continue
		}
		samples = append(samples, Sample{Timestamp: ts, Value: v})
	}
	return NewSeries(name, samples), c, nil
}

// parseValue reports false for empty, NA-style, or non-numeric values.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null", "none":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// RecordsFromSeries formats a series for export.
func RecordsFromSeries(s Series, parser TimeParser) []Record {
	out := make([]Record, s.Len())
	for i := range s.Len() {
		sm := s.At(i)
		out[i] = Record{Timestamp: parser.Format(sm.Timestamp), Value: sm.Value}
	}
	return out
}
