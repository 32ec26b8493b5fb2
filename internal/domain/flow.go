package domain

import (
	"fmt"
	"math"
)

// CylinderArea returns the cross-sectional area (cm²) of a cylindrical
// collector with the given radius in centimeters.
func CylinderArea(radius float64) float64 {
	return math.Pi * radius * radius
}

// FlowRate converts a corrected level series (cm) into a discharge series
// (cm³/min) using backward differences scaled by the cross-sectional area
// (cm²). Each output sample is stamped with the later timestamp of its pair,
// so the result has one sample fewer than the input.
//
// Both deltas are taken as earlier minus later; for increasing timestamps the
// time delta is negative and the sign of the rate follows from the ratio.
func FlowRate(level Series, area float64) (Series, error) {
	if math.IsNaN(area) || math.IsInf(area, 0) || area <= 0 {
		return Series{}, fmt.Errorf("flow rate: area %v: %w", area, ErrInvalidParameter)
	}
	if level.Len() == 0 {
		return Series{}, fmt.Errorf("flow rate: %w: %w", ErrInsufficientData, ErrEmptySeries)
	}
	if level.Len() < 2 {
		return Series{}, fmt.Errorf("flow rate: need at least 2 samples, got %d: %w", level.Len(), ErrInsufficientData)
	}

	out := make([]Sample, 0, level.Len()-1)
	for i := 1; i < level.Len(); i++ {
		prev, cur := level.At(i-1), level.At(i)

		deltaMinutes := prev.Timestamp.Sub(cur.Timestamp).Minutes()
		if deltaMinutes == 0 {
			return Series{}, fmt.Errorf("flow rate: samples %d and %d share timestamp %s: %w",
				i-1, i, cur.Timestamp.Format("15:04:05"), ErrDivisionByZero)
		}
		deltaLevel := prev.Value - cur.Value

		out = append(out, Sample{
			Timestamp: cur.Timestamp,
			Value:     deltaLevel * area / deltaMinutes,
		})
	}
	return newSeriesOrdered(level.Name()+"_discharge", out), nil
}
