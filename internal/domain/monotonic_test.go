package domain

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBase = time.Date(2024, time.May, 10, 14, 0, 0, 0, time.UTC)

// minuteSeries builds a series with one sample per minute starting at testBase.
func minuteSeries(values ...float64) Series {
	samples := make([]Sample, len(values))
	for i, v := range values {
		samples[i] = Sample{Timestamp: testBase.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return NewSeries("test", samples)
}

func randomSeries(r *rand.Rand, n int) Series {
	values := make([]float64, n)
	level := 10.0
	for i := range values {
		level += r.Float64()*2 - 0.7
		values[i] = float64(int(level*10)) / 10
	}
	return minuteSeries(values...)
}

func TestCorrectMonotonic(t *testing.T) {
	tests := []struct {
		name     string
		dir      Direction
		values   []float64
		expected []float64
	}{
		{"forward drops dips", Forward, []float64{5, 3, 6, 6, 4, 8}, []float64{5, 6, 6, 8}},
		{"forward keeps ties", Forward, []float64{2, 2, 2}, []float64{2, 2, 2}},
		{"forward drops everything below first", Forward, []float64{9, 1, 2, 3}, []float64{9}},
		{"backward trusts last value", Backward, []float64{1, 2, 9, 3, 10, 10}, []float64{1, 10, 10}},
		{"backward keeps non-increasing run", Backward, []float64{10, 9, 9, 7, 5}, []float64{10, 9, 9, 7, 5}},
		{"backward with only first and last", Backward, []float64{5, 3, 6, 6, 4, 8}, []float64{5, 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := CorrectMonotonic(minuteSeries(tt.values...), tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.Values())
		})
	}
}

// The backward scan never selects a first sample below the running maximum,
// but the first sample is part of the result anyway.
func TestCorrectMonotonic_BackwardAlwaysKeepsFirstSample(t *testing.T) {
	s := minuteSeries(1, 5, 4)

	out, err := CorrectMonotonic(s, Backward)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 5, 4}, out.Values())
	assert.Equal(t, s.First(), out.First())
}

func TestCorrectMonotonic_BackwardDoesNotDuplicateFirstSample(t *testing.T) {
	out, err := CorrectMonotonic(minuteSeries(10, 9, 8), Backward)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
}

func TestCorrectMonotonic_PreservesTimestampOrder(t *testing.T) {
	s := minuteSeries(5, 3, 6, 6, 4, 8)

	for _, dir := range []Direction{Forward, Backward} {
		out, err := CorrectMonotonic(s, dir)
		require.NoError(t, err)
		for i := 1; i < out.Len(); i++ {
			assert.True(t, out.At(i-1).Timestamp.Before(out.At(i).Timestamp), "%s: sample %d out of order", dir, i)
		}
	}
}

func TestCorrectMonotonic_EmptySeries(t *testing.T) {
	_, err := CorrectMonotonic(NewSeries("empty", nil), Forward)
	require.ErrorIs(t, err, ErrEmptySeries)
}

func TestCorrectMonotonic_SingleSample(t *testing.T) {
	s := minuteSeries(42)
	for _, dir := range []Direction{Forward, Backward} {
		out, err := CorrectMonotonic(s, dir)
		require.NoError(t, err)
		assert.Equal(t, s.Samples(), out.Samples())
	}
}

func TestCorrectMonotonic_InvalidDirection(t *testing.T) {
	_, err := CorrectMonotonic(minuteSeries(1, 2), Direction(7))
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestCorrectMonotonic_DoesNotMutateInput(t *testing.T) {
	s := minuteSeries(5, 3, 6)
	before := s.Samples()

	_, err := CorrectMonotonic(s, Forward)
	require.NoError(t, err)
	assert.Equal(t, before, s.Samples())
}

func TestCorrectMonotonic_ForwardIdempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := range 50 {
		s := randomSeries(r, 5+i)

		once, err := CorrectMonotonic(s, Forward)
		require.NoError(t, err)
		twice, err := CorrectMonotonic(once, Forward)
		require.NoError(t, err)

		assert.Equal(t, once.Samples(), twice.Samples())
	}
}

func TestCorrectMonotonic_ForwardOutputNonDecreasing(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for i := range 50 {
		out, err := CorrectMonotonic(randomSeries(r, 5+i), Forward)
		require.NoError(t, err)
		for j := 1; j < out.Len(); j++ {
			assert.GreaterOrEqual(t, out.At(j).Value, out.At(j-1).Value)
		}
	}
}

// Reversing, correcting forward and reversing back reproduces the backward
// correction, up to the unconditionally kept first sample.
func TestCorrectMonotonic_ForwardBackwardSymmetry(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for i := range 50 {
		s := randomSeries(r, 5+i)

		backward, err := CorrectMonotonic(s, Backward)
		require.NoError(t, err)

		mirrored, err := CorrectMonotonic(s.Reverse(), Forward)
		require.NoError(t, err)
		want := mirrored.Reverse().Samples()
		if want[0] != s.First() {
			want = append([]Sample{s.First()}, want...)
		}

		assert.Equal(t, want, backward.Samples())
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in       string
		expected Direction
		wantErr  bool
	}{
		{"forward", Forward, false},
		{"Backward", Backward, false},
		{" forward ", Forward, false},
		{"sideways", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDirection(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}
