package csvfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/couchcryptid/runoff-etl-service/internal/config"
	"github.com/couchcryptid/runoff-etl-service/internal/domain"
)

// SummaryFile is written next to the stage files of every series.
const SummaryFile = "summary.json"

// ErrDirCollision is returned when two series map to the same output directory.
var ErrDirCollision = errors.New("output directory collision")

// DirLoader writes each result as <dir>/<series>/<stage>.csv plus a summary.
// It implements pipeline.BatchLoader.
type DirLoader struct {
	dir    string
	parser domain.TimeParser
	logger *slog.Logger

	mu      sync.Mutex
	claimed map[string]string // output dir -> series
}

// NewDirLoader creates a loader rooted at dir. Timestamped stages are
// formatted with parser.
func NewDirLoader(dir string, parser domain.TimeParser, logger *slog.Logger) *DirLoader {
	return &DirLoader{dir: dir, parser: parser, logger: logger, claimed: make(map[string]string)}
}

// LoadBatch writes every result of the batch. Writing stops at the first error.
func (l *DirLoader) LoadBatch(ctx context.Context, results []domain.Result) error {
	for i := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.write(results[i]); err != nil {
			return fmt.Errorf("write series %q: %w", results[i].Series, err)
		}
	}
	return nil
}

func (l *DirLoader) write(res domain.Result) error {
	name, err := l.claim(res.Series)
	if err != nil {
		return err
	}
	dir := filepath.Join(l.dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, out := range res.Outputs {
		var buf bytes.Buffer
		if err := l.encode(&buf, res, out); err != nil {
			return fmt.Errorf("%s: %w", out.Stage, err)
		}
		if err := writeFile(filepath.Join(dir, out.Stage+".csv"), buf.Bytes()); err != nil {
			return err
		}
	}

	summary, err := json.MarshalIndent(res.Summarize(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := writeFile(filepath.Join(dir, SummaryFile), append(summary, '\n')); err != nil {
		return err
	}

	l.logger.Debug("series written", "series", res.Series, "dir", dir, "outputs", len(res.Outputs))
	return nil
}

// encode writes fitted and derivative stages against elapsed hours and every
// other stage against formatted timestamps.
func (l *DirLoader) encode(w io.Writer, res domain.Result, out domain.Output) error {
	if input, curve, ok := splitFitStage(out.Stage); ok {
		if fit, found := res.Fits[input]; found {
			c := fit.Fitted
			if curve == domain.StageDerivative {
				c = fit.Derivative
			}
			xs, ys := c.Points()
			return WriteCurve(w, xs, ys, out.Stage)
		}
	}
	return WriteRecords(w, domain.RecordsFromSeries(out.Series, l.parser), out.Stage)
}

func splitFitStage(stage string) (input, curve string, ok bool) {
	for _, c := range []string{domain.StageFitted, domain.StageDerivative} {
		if in, found := strings.CutSuffix(stage, "_"+c); found {
			return in, c, true
		}
	}
	return "", "", false
}

// claim reserves the output directory of series. Rewriting the same series
// is allowed; a different series mapping to the same directory is not.
func (l *DirLoader) claim(series string) (string, error) {
	name := config.OutputDirName(series)

	l.mu.Lock()
	defer l.mu.Unlock()
	if other, ok := l.claimed[name]; ok && other != series {
		return "", fmt.Errorf("%q already written by %q: %w", name, other, ErrDirCollision)
	}
	l.claimed[name] = series
	return name, nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
