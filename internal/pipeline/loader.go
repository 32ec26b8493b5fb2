package pipeline

import (
	"context"
	"errors"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
)

// MultiLoader fans a batch out to several loaders. Every loader is called
// even when an earlier one fails; the errors are joined.
type MultiLoader []BatchLoader

func (m MultiLoader) LoadBatch(ctx context.Context, results []domain.Result) error {
	var errs []error
	for _, l := range m {
		if err := l.LoadBatch(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
