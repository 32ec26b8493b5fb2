package domain

import "fmt"

// StageRaw names the uncorrected input series of a KindRaw job.
const StageRaw = "raw"

// StageRead names the failure of a job whose source could not be read.
const StageRead = "read"

// ProcessParams carries the caller-supplied configuration for Process.
type ProcessParams struct {
	// Area is the collector cross-section in cm², used for discharge.
	Area   float64
	Fit    FitOptions
	Parser TimeParser
}

// Process runs the full treatment for one job:
//
//	records → coerce → monotonic correction → discharge (level only) → fits
//
// A failure before the fits is returned as a StageError and no Result is
// produced. Fit failures are collected in Result.StageErrors and the other
// outputs are kept.
func Process(job Job, p ProcessParams) (Result, error) {
	if job.Err != nil {
		return Result{}, StageError{Stage: StageRead, Err: job.Err}
	}

	series, coercion, err := Coerce(job.Name, job.Records, p.Parser)
	if err != nil {
		return Result{}, StageError{Stage: StageRead, Err: err}
	}

	res := Result{
		Series:    job.Name,
		Kind:      job.Kind,
		Direction: job.Direction,
		Dropped:   DropCounts{Coercion: coercion.Dropped},
	}

	base, baseStage := series, StageRaw
	if job.Kind.Corrects() {
		corrected, err := CorrectMonotonic(series, job.Direction)
		if err != nil {
			return Result{}, StageError{Stage: StageCorrected, Err: err}
		}
		res.Dropped.Monotonic = series.Len() - corrected.Len()
		res.Outputs = append(res.Outputs, Output{Stage: StageCorrected, Series: corrected})
		base, baseStage = corrected, StageCorrected
	}

	fitInputs := []Output{{Stage: baseStage, Series: base}}
	if job.Kind == KindLevel {
		discharge, err := FlowRate(base, p.Area)
		if err != nil {
			return Result{}, StageError{Stage: StageDischarge, Err: err}
		}
		res.Outputs = append(res.Outputs, Output{Stage: StageDischarge, Series: discharge})
		fitInputs = append(fitInputs, Output{Stage: StageDischarge, Series: discharge})
	}

	opts := job.Fit.Apply(p.Fit)
	if opts.Origin.IsZero() {
		opts.Origin = coercion.Earliest
	}
	res.Fits = make(map[string]FitResult, len(fitInputs))
	for i, in := range fitInputs {
		fit, err := FitSeries(in.Series, opts)
		if err != nil {
			res.StageErrors = append(res.StageErrors, StageError{
				Stage: FitStage(in.Stage, StageFitted),
				Err:   err,
			})
			continue
		}
		if i == 0 {
			fit.Dropped += coercion.Dropped
		}
		res.Fits[in.Stage] = fit
		fittedStage := FitStage(in.Stage, StageFitted)
		derivStage := FitStage(in.Stage, StageDerivative)
		res.Outputs = append(res.Outputs,
			Output{Stage: fittedStage, Series: fit.Fitted.Series(fmt.Sprintf("%s_%s", job.Name, fittedStage))},
			Output{Stage: derivStage, Series: fit.Derivative.Series(fmt.Sprintf("%s_%s", job.Name, derivStage))},
		)
	}

	res.ProcessedAt = clock.Now()
	return res, nil
}
