package domain

import (
	"slices"
	"time"
)

// Sample is a single (timestamp, value) reading. The unit of Value depends on
// the series: centimeters for level, cubic centimeters for volume, cm³/min for
// discharge.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Series is an ordered, read-only sequence of samples. Every operation that
// derives data from a Series returns a new Series.
type Series struct {
	name    string
	samples []Sample
}

// NewSeries copies samples and stable-sorts them by timestamp, so samples that
// share a timestamp keep their ingestion order.
func NewSeries(name string, samples []Sample) Series {
	sorted := slices.Clone(samples)
	slices.SortStableFunc(sorted, func(a, b Sample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return Series{name: name, samples: sorted}
}

// newSeriesOrdered builds a Series from samples already in the desired order.
// The caller hands over ownership of the slice.
func newSeriesOrdered(name string, samples []Sample) Series {
	return Series{name: name, samples: samples}
}

// Name returns the series label used for logging and output naming.
func (s Series) Name() string { return s.name }

// Len returns the number of samples.
func (s Series) Len() int { return len(s.samples) }

// At returns the i-th sample in iteration order.
func (s Series) At(i int) Sample { return s.samples[i] }

// First returns the first sample. It panics on an empty series.
func (s Series) First() Sample { return s.samples[0] }

// Last returns the last sample. It panics on an empty series.
func (s Series) Last() Sample { return s.samples[len(s.samples)-1] }

// Samples returns a copy of the samples.
func (s Series) Samples() []Sample { return slices.Clone(s.samples) }

// Values returns the sample values in iteration order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.samples))
	for i, sm := range s.samples {
		out[i] = sm.Value
	}
	return out
}

// Timestamps returns the sample timestamps in iteration order.
func (s Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s.samples))
	for i, sm := range s.samples {
		out[i] = sm.Timestamp
	}
	return out
}

// WithName returns the same samples under a different name.
func (s Series) WithName(name string) Series {
	return Series{name: name, samples: s.samples}
}

// Reverse returns a new series iterating from last to first. The result is
// not re-sorted.
func (s Series) Reverse() Series {
	out := slices.Clone(s.samples)
	slices.Reverse(out)
	return newSeriesOrdered(s.name, out)
}

// ElapsedHours returns, for each sample, the hours elapsed since the first
// sample's timestamp.
func (s Series) ElapsedHours() []float64 {
	out := make([]float64, len(s.samples))
	if len(s.samples) == 0 {
		return out
	}
	origin := s.samples[0].Timestamp
	for i, sm := range s.samples {
		out[i] = sm.Timestamp.Sub(origin).Hours()
	}
	return out
}
