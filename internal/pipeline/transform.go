package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
	"github.com/couchcryptid/runoff-etl-service/internal/observability"
)

// RunoffTransformer implements Transformer with the domain treatment:
// coercion, monotonic correction, discharge and polynomial smoothing.
type RunoffTransformer struct {
	params  domain.ProcessParams
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates a RunoffTransformer for the given treatment parameters.
func NewTransformer(params domain.ProcessParams, logger *slog.Logger, metrics *observability.Metrics) *RunoffTransformer {
	return &RunoffTransformer{
		params:  params,
		logger:  logger,
		metrics: metrics,
	}
}

func (t *RunoffTransformer) Transform(ctx context.Context, job domain.Job) (domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}

	start := time.Now()
	res, err := domain.Process(job, t.params)
	t.metrics.TransformDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Result{}, err
	}

	t.metrics.SamplesDropped.WithLabelValues("coercion").Add(float64(res.Dropped.Coercion))
	t.metrics.SamplesDropped.WithLabelValues("monotonic").Add(float64(res.Dropped.Monotonic))
	for _, se := range res.StageErrors {
		t.metrics.StageErrors.WithLabelValues(se.Stage).Inc()
		t.logger.Warn("stage failed", "series", job.Name, "stage", se.Stage, "error", se.Err)
	}

	t.logger.Debug("series transformed",
		"series", job.Name,
		"kind", job.Kind,
		"outputs", len(res.Outputs),
		"dropped_coercion", res.Dropped.Coercion,
		"dropped_monotonic", res.Dropped.Monotonic,
	)
	return res, nil
}
