package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Direction selects which end of a series the monotonic correction trusts.
type Direction int

const (
	// Forward trusts the first sample and scans towards the end. Used for
	// water level.
	Forward Direction = iota
	// Backward trusts the last sample and scans towards the start. Used for
	// accumulated volume.
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "forward" or "backward", case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	default:
		return 0, fmt.Errorf("direction %q: %w", s, ErrInvalidParameter)
	}
}

// CorrectMonotonic removes samples that break a non-decreasing progression in
// the given scan direction and returns the survivors in chronological order.
// Ties are kept.
//
// In Backward mode the first sample is always part of the result, whether or
// not the backward scan selects it.
func CorrectMonotonic(s Series, dir Direction) (Series, error) {
	if s.Len() == 0 {
		return Series{}, fmt.Errorf("monotonic correction: %w", ErrEmptySeries)
	}
	if s.Len() == 1 {
		return newSeriesOrdered(s.Name(), s.Samples()), nil
	}

	var keep []int
	switch dir {
	case Forward:
		keep = scanForward(s)
	case Backward:
		keep = scanBackward(s)
	default:
		return Series{}, fmt.Errorf("monotonic correction: %s: %w", dir, ErrInvalidParameter)
	}

	out := make([]Sample, len(keep))
	for i, idx := range keep {
		out[i] = s.At(idx)
	}
	return newSeriesOrdered(s.Name(), out), nil
}

func scanForward(s Series) []int {
	keep := []int{0}
	threshold := s.At(0).Value
	for i := 1; i < s.Len(); i++ {
		if v := s.At(i).Value; v >= threshold {
			keep = append(keep, i)
			threshold = v
		}
	}
	return keep
}

func scanBackward(s Series) []int {
	last := s.Len() - 1
	threshold := s.At(last).Value

	var keep []int
	for i := last; i >= 0; i-- {
		if v := s.At(i).Value; v >= threshold {
			keep = append(keep, i)
			threshold = v
		}
	}
	slices.Reverse(keep)

	if keep[0] != 0 {
		keep = append([]int{0}, keep...)
	}
	return keep
}
