package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the physical quantity a sensor series measures. It decides which
// correction direction applies and whether a discharge series is derived.
type Kind string

const (
	KindLevel  Kind = "level"  // water height, cm
	KindVolume Kind = "volume" // accumulated volume, cm³
	KindRaw    Kind = "raw"    // anything else; smoothed only
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLevel, KindVolume, KindRaw:
		return k, nil
	default:
		return "", fmt.Errorf("kind %q: %w", s, ErrInvalidParameter)
	}
}

// DefaultDirection returns the correction direction for a kind: level is read
// forward, accumulated volume backward from its final value.
func (k Kind) DefaultDirection() Direction {
	if k == KindVolume {
		return Backward
	}
	return Forward
}

// Corrects reports whether series of this kind go through monotonic correction.
func (k Kind) Corrects() bool { return k == KindLevel || k == KindVolume }

// Output stage names.
const (
	StageCorrected  = "corrected"
	StageDischarge  = "discharge"
	StageFitted     = "fitted"
	StageDerivative = "derivative"
)

// Job is one sensor series to process, as delivered by an extractor.
type Job struct {
	Name      string
	Kind      Kind
	Direction Direction
	Source    string
	Records   []RawRecord
	Fit       FitOverride

	// Err is set when the extractor could not read the source; the job is
	// reported as failed without being transformed.
	Err error
}

// FitOverride replaces parts of the configured fit options for one job.
// Zero fields keep the configured value.
type FitOverride struct {
	Degree      int
	SampleCount int
}

// Apply returns opts with the non-zero override fields set.
func (o FitOverride) Apply(opts FitOptions) FitOptions {
	if o.Degree != 0 {
		opts.Degree = o.Degree
	}
	if o.SampleCount != 0 {
		opts.SampleCount = o.SampleCount
	}
	return opts
}

// Output is one derived series of a job, e.g. "discharge" or "corrected_fitted".
type Output struct {
	Stage  string
	Series Series
}

// StageError records a non-fatal stage failure inside an otherwise successful job.
type StageError struct {
	Stage string
	Err   error
}

func (e StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e StageError) Unwrap() error { return e.Err }

// DropCounts tallies the samples each step discarded.
type DropCounts struct {
	Coercion  int `json:"coercion"`
	Monotonic int `json:"monotonic"`
}

// Result is everything derived from one Job.
type Result struct {
	Series      string
	Kind        Kind
	Direction   Direction
	Outputs     []Output
	Fits        map[string]FitResult
	Dropped     DropCounts
	StageErrors []StageError
	ProcessedAt time.Time
}

// Output returns the output for a stage, if present.
func (r Result) Output(stage string) (Series, bool) {
	for _, o := range r.Outputs {
		if o.Stage == stage {
			return o.Series, true
		}
	}
	return Series{}, false
}

// FitStage names the output of a fit over a given input stage, e.g.
// FitStage("discharge", StageFitted) == "discharge_fitted".
func FitStage(input, curve string) string { return input + "_" + curve }

// Summary is the serializable overview of a Result.
type Summary struct {
	Series      string         `json:"series"`
	Kind        Kind           `json:"kind"`
	Direction   string         `json:"direction,omitempty"`
	Outputs     map[string]int `json:"outputs"`
	Fits        map[string]Fit `json:"fits,omitempty"`
	Dropped     DropCounts     `json:"dropped"`
	Errors      []string       `json:"errors,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// Fit is the serializable form of a fitted model.
type Fit struct {
	Coefficients []float64 `json:"coefficients"`
	Origin       time.Time `json:"origin"`
	Used         int       `json:"used"`
	Dropped      int       `json:"dropped"`
}

// Summarize builds the Summary of r.
func (r Result) Summarize() Summary {
	s := Summary{
		Series:      r.Series,
		Kind:        r.Kind,
		Outputs:     make(map[string]int, len(r.Outputs)),
		Dropped:     r.Dropped,
		ProcessedAt: r.ProcessedAt,
	}
	if r.Kind.Corrects() {
		s.Direction = r.Direction.String()
	}
	for _, o := range r.Outputs {
		s.Outputs[o.Stage] = o.Series.Len()
	}
	if len(r.Fits) > 0 {
		s.Fits = make(map[string]Fit, len(r.Fits))
		for stage, f := range r.Fits {
			s.Fits[stage] = Fit{
				Coefficients: f.Model.Coefficients,
				Origin:       f.Model.Origin,
				Used:         f.Used,
				Dropped:      f.Dropped,
			}
		}
	}
	for _, e := range r.StageErrors {
		s.Errors = append(s.Errors, e.Error())
	}
	return s
}
