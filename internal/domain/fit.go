package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Fit defaults match the smoothing used for the experiment charts.
const (
	DefaultFitDegree      = 5
	DefaultFitSampleCount = 500
)

// FitOptions configures FitSeries.
type FitOptions struct {
	Degree      int
	SampleCount int

	// Origin is the instant x = 0 is measured from. Zero means the first
	// timestamp of the fitted series.
	Origin time.Time
}

// DefaultFitOptions returns degree 5 with 500 curve samples.
func DefaultFitOptions() FitOptions {
	return FitOptions{Degree: DefaultFitDegree, SampleCount: DefaultFitSampleCount}
}

// PolynomialModel is c[0] + c[1]·x + ... + c[n]·xⁿ with x in hours since Origin.
type PolynomialModel struct {
	Coefficients []float64
	Origin       time.Time
}

// Degree returns the highest power of the polynomial.
func (p PolynomialModel) Degree() int { return len(p.Coefficients) - 1 }

// Eval evaluates the polynomial at x using Horner's scheme.
func (p PolynomialModel) Eval(x float64) float64 {
	y := 0.0
	for i := len(p.Coefficients) - 1; i >= 0; i-- {
		y = y*x + p.Coefficients[i]
	}
	return y
}

// EvalAt evaluates the polynomial at an instant.
func (p PolynomialModel) EvalAt(t time.Time) float64 {
	return p.Eval(t.Sub(p.Origin).Hours())
}

// Derivative differentiates term by term: c·xᵏ becomes k·c·xᵏ⁻¹.
func (p PolynomialModel) Derivative() PolynomialModel {
	if len(p.Coefficients) <= 1 {
		return PolynomialModel{Coefficients: []float64{0}, Origin: p.Origin}
	}
	d := make([]float64, len(p.Coefficients)-1)
	for k := 1; k < len(p.Coefficients); k++ {
		d[k-1] = float64(k) * p.Coefficients[k]
	}
	return PolynomialModel{Coefficients: d, Origin: p.Origin}
}

// Curve is a polynomial sampled at N equally spaced x values over [From, To].
// Points are computed on demand.
type Curve struct {
	Model PolynomialModel
	From  float64
	To    float64
	N     int
}

// X returns the i-th abscissa.
func (c Curve) X(i int) float64 {
	if c.N <= 1 {
		return c.From
	}
	return c.From + float64(i)*(c.To-c.From)/float64(c.N-1)
}

// At returns the i-th (x, y) pair.
func (c Curve) At(i int) (float64, float64) {
	x := c.X(i)
	return x, c.Model.Eval(x)
}

// Points evaluates every point of the curve.
func (c Curve) Points() (xs, ys []float64) {
	xs = make([]float64, c.N)
	ys = make([]float64, c.N)
	for i := range c.N {
		xs[i], ys[i] = c.At(i)
	}
	return xs, ys
}

// Series converts the curve into a time series anchored at the model origin.
func (c Curve) Series(name string) Series {
	out := make([]Sample, c.N)
	for i := range c.N {
		x, y := c.At(i)
		out[i] = Sample{
			Timestamp: c.Model.Origin.Add(time.Duration(x * float64(time.Hour))),
			Value:     y,
		}
	}
	return newSeriesOrdered(name, out)
}

// FitResult holds a fitted model and its smoothed and derivative curves.
type FitResult struct {
	Model      PolynomialModel
	Fitted     Curve
	Derivative Curve

	// Used is the number of samples the fit was computed from; Dropped is
	// the number discarded because their value was missing or not numeric.
	Used    int
	Dropped int
}

// FitSeries fits a least-squares polynomial over (elapsed hours, value) and
// derives its analytic derivative. Samples with non-finite values are dropped
// and counted.
func FitSeries(s Series, opts FitOptions) (FitResult, error) {
	if opts.Degree < 1 {
		return FitResult{}, fmt.Errorf("curve fit: degree %d: %w", opts.Degree, ErrInvalidParameter)
	}
	if opts.SampleCount < 1 {
		return FitResult{}, fmt.Errorf("curve fit: sample count %d: %w", opts.SampleCount, ErrInvalidParameter)
	}
	if s.Len() == 0 {
		return FitResult{}, fmt.Errorf("curve fit: %w: %w", ErrInsufficientData, ErrEmptySeries)
	}

	origin := opts.Origin
	if origin.IsZero() {
		origin = s.First().Timestamp
	}

	xs := make([]float64, 0, s.Len())
	ys := make([]float64, 0, s.Len())
	dropped := 0
	for i := range s.Len() {
		sm := s.At(i)
		if math.IsNaN(sm.Value) || math.IsInf(sm.Value, 0) {
			dropped++
			continue
		}
		xs = append(xs, sm.Timestamp.Sub(origin).Hours())
		ys = append(ys, sm.Value)
	}

	if need := opts.Degree + 1; len(xs) < need {
		return FitResult{}, fmt.Errorf("curve fit: degree %d needs %d valid samples, got %d: %w",
			opts.Degree, need, len(xs), ErrInsufficientData)
	}

	lo, hi := slices.Min(xs), slices.Max(xs)
	if lo == hi {
		return FitResult{}, fmt.Errorf("curve fit: all samples share one timestamp: %w", ErrDegenerateInput)
	}

	coeffs, err := leastSquares(xs, ys, opts.Degree)
	if err != nil {
		return FitResult{}, err
	}

	model := PolynomialModel{Coefficients: coeffs, Origin: origin}
	return FitResult{
		Model:      model,
		Fitted:     Curve{Model: model, From: lo, To: hi, N: opts.SampleCount},
		Derivative: Curve{Model: model.Derivative(), From: lo, To: hi, N: opts.SampleCount},
		Used:       len(xs),
		Dropped:    dropped,
	}, nil
}

// FitRecords coerces raw records and fits them. Records whose value cannot be
// parsed are dropped and reported in FitResult.Dropped; x is measured from the
// earliest timestamp among all records, valid or not.
func FitRecords(raw []RawRecord, parser TimeParser, opts FitOptions) (FitResult, error) {
	s, coercion, err := Coerce("", raw, parser)
	if err != nil {
		return FitResult{}, err
	}
	if opts.Origin.IsZero() {
		opts.Origin = coercion.Earliest
	}
	res, err := FitSeries(s, opts)
	if err != nil {
		return FitResult{}, fmt.Errorf("%d of %d records dropped: %w", coercion.Dropped, len(raw), err)
	}
	res.Dropped += coercion.Dropped
	return res, nil
}

// leastSquares solves the Vandermonde system V·c = y in the least-squares
// sense via QR factorization.
func leastSquares(xs, ys []float64, degree int) ([]float64, error) {
	cols := degree + 1
	v := mat.NewDense(len(xs), cols, nil)
	for i, x := range xs {
		p := 1.0
		for j := range cols {
			v.Set(i, j, p)
			p *= x
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(v, mat.NewVecDense(len(ys), slices.Clone(ys))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("curve fit: ill-conditioned system (condition %.3g): %w", float64(cond), ErrDegenerateInput)
		}
		return nil, fmt.Errorf("curve fit: solve: %w", err)
	}

	out := make([]float64, cols)
	for j := range cols {
		out[j] = c.AtVec(j)
	}
	return out, nil
}
