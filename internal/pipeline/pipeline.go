package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
	"github.com/couchcryptid/runoff-etl-service/internal/observability"
)

// StageLoad names the failure of a series whose outputs could not be written.
const StageLoad = "load"

// stageTransform is reported when a transformer fails without naming a stage.
const stageTransform = "transform"

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize jobs from the source. An empty batch
// means the source is exhausted.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.Job, error)
}

// Transformer derives the output series of one job.
type Transformer interface {
	Transform(ctx context.Context, job domain.Job) (domain.Result, error)
}

// BatchLoader writes the results of a batch to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []domain.Result) error
}

// Failure is a series that was dropped from the run.
type Failure struct {
	Series string
	Stage  string
	Err    error
}

// Report summarizes a run.
type Report struct {
	Extracted   int
	Loaded      []string
	Failed      []Failure
	StageErrors int
}

// OK reports whether every extracted series was loaded.
func (r Report) OK() bool { return len(r.Failed) == 0 }

func (r Report) clone() Report {
	r.Loaded = append([]string(nil), r.Loaded...)
	r.Failed = append([]Failure(nil), r.Failed...)
	return r
}

// Pipeline orchestrates the extract-transform-load run over an experiment.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	running     atomic.Bool
	batchSize   int
	loadRetries int

	mu     sync.Mutex
	report Report
}

// New creates a Pipeline with the given stages and observability. A failed
// load is retried up to loadRetries times before its series are dropped.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize, loadRetries int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		loadRetries: loadRetries,
	}
}

// CheckReadiness returns nil once at least one series has been loaded,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any series yet")
	}
	return nil
}

// Status is a point-in-time view of the current or last run.
type Status struct {
	Running bool
	Report  Report
}

// Status returns a snapshot that is safe to use while a run is in progress.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{Running: p.running.Load(), Report: p.report.clone()}
}

// Run drains the extractor once. A series that fails is recorded in the
// report and never stops the run; only extraction errors and cancellation
// end it early.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "load_retries", p.loadRetries)
	p.metrics.PipelineRunning.Set(1)
	p.running.Store(true)
	defer func() {
		p.running.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	p.mu.Lock()
	p.report = Report{}
	p.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("pipeline stopping", "reason", err)
			return p.snapshot(), err
		}

		done, err := p.processBatch(ctx)
		if err != nil {
			return p.snapshot(), err
		}
		if done {
			report := p.snapshot()
			p.logger.Info("pipeline finished",
				"extracted", report.Extracted,
				"loaded", len(report.Loaded),
				"failed", len(report.Failed),
				"stage_errors", report.StageErrors,
			)
			return report, nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns true once the
// extractor is exhausted.
func (p *Pipeline) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()

	jobs, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Error("extract batch failed", "error", err)
		return false, fmt.Errorf("extract batch: %w", err)
	}
	if len(jobs) == 0 {
		return true, nil
	}

	p.metrics.SeriesExtracted.Add(float64(len(jobs)))
	p.metrics.BatchSize.Observe(float64(len(jobs)))
	p.update(func(r *Report) { r.Extracted += len(jobs) })

	results := p.transformAll(ctx, jobs)
	if len(results) == 0 {
		return false, nil
	}

	if err := p.loadWithRetry(ctx, results); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Error("load batch failed, dropping series", "error", err, "batch_size", len(results))
		for _, res := range results {
			p.fail(res.Series, StageLoad, err)
		}
		return false, nil
	}

	p.metrics.SeriesLoaded.Add(float64(len(results)))
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.update(func(r *Report) {
		for _, res := range results {
			r.Loaded = append(r.Loaded, res.Series)
			r.StageErrors += len(res.StageErrors)
		}
	})
	p.ready.Store(true)
	return false, nil
}

// transformAll transforms each job, recording failures and keeping the successes.
func (p *Pipeline) transformAll(ctx context.Context, jobs []domain.Job) []domain.Result {
	results := make([]domain.Result, 0, len(jobs))
	for _, job := range jobs {
		res, err := p.transformer.Transform(ctx, job)
		if err != nil {
			stage := stageTransform
			var se domain.StageError
			if errors.As(err, &se) {
				stage = se.Stage
			}
			p.fail(job.Name, stage, err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// loadWithRetry loads the batch, retrying with exponential backoff.
func (p *Pipeline) loadWithRetry(ctx context.Context, results []domain.Result) error {
	backoff := initialBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = p.loader.LoadBatch(ctx, results); err == nil {
			return nil
		}
		if attempt >= p.loadRetries || ctx.Err() != nil {
			return err
		}
		p.logger.Warn("load batch failed, retrying", "error", err, "attempt", attempt+1, "backoff", backoff)
		p.metrics.LoadRetries.Inc()
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

func (p *Pipeline) fail(series, stage string, err error) {
	p.logger.Warn("series failed", "series", series, "stage", stage, "error", err)
	p.metrics.SeriesFailed.WithLabelValues(stage).Inc()
	p.update(func(r *Report) {
		r.Failed = append(r.Failed, Failure{Series: series, Stage: stage, Err: err})
	})
}

func (p *Pipeline) update(fn func(*Report)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.report)
}

func (p *Pipeline) snapshot() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report.clone()
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
