package csvfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/runoff-etl-service/internal/config"
	"github.com/couchcryptid/runoff-etl-service/internal/domain"
)

// ManifestExtractor reads the sensor files named by an experiment manifest.
// It implements pipeline.BatchExtractor.
type ManifestExtractor struct {
	entries []config.Entry
	next    int
	logger  *slog.Logger
}

// NewManifestExtractor creates an extractor over the manifest's series, in manifest order.
func NewManifestExtractor(m *config.Manifest, logger *slog.Logger) *ManifestExtractor {
	return &ManifestExtractor{entries: m.Entries(), logger: logger}
}

// ExtractBatch reads up to batchSize series. An empty batch means every
// series has been handed out. A file that cannot be read yields a job with
// Err set so the failure stays attached to its series.
func (e *ManifestExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.Job, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size %d: %w", batchSize, domain.ErrInvalidParameter)
	}

	var jobs []domain.Job
	for len(jobs) < batchSize && e.next < len(e.entries) {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		entry := e.entries[e.next]
		e.next++

		job := domain.Job{
			Name:      entry.Name,
			Kind:      entry.Kind,
			Direction: entry.Direction,
			Source:    entry.Path,
			Fit:       entry.Fit,
		}
		job.Records, job.Err = readFile(entry)
		if job.Err != nil {
			e.logger.Warn("read series failed", "series", entry.Name, "path", entry.Path, "error", job.Err)
		} else {
			e.logger.Debug("series read", "series", entry.Name, "records", len(job.Records))
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Remaining reports how many series have not been extracted yet.
func (e *ManifestExtractor) Remaining() int { return len(e.entries) - e.next }

func readFile(entry config.Entry) ([]domain.RawRecord, error) {
	f, err := os.Open(entry.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadRecords(f, Columns{Timestamp: entry.TimestampColumn, Value: entry.ValueColumn})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Path, err)
	}
	return records, nil
}
