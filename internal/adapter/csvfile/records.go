// Package csvfile reads sensor series from CSV files and writes derived
// series back as CSV.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
)

// Default column names, and the names used by files exported from the
// broker ("data" holds H:MM, "body" the reading).
const (
	TimestampColumn       = "timestamp"
	ValueColumn           = "value"
	legacyTimestampColumn = "data"
	legacyValueColumn     = "body"
)

// ErrMissingColumn is returned when a requested column is not in the header.
var ErrMissingColumn = errors.New("missing column")

// Columns names the timestamp and value columns of a sensor file. Empty
// names select the defaults, falling back to the legacy names and then to
// the first two columns.
type Columns struct {
	Timestamp string
	Value     string
}

// ReadRecords reads a headered CSV of timestamp/value rows. Values are kept
// as text; coercion happens in the domain.
func ReadRecords(r io.Reader, cols Columns) ([]domain.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	tsIdx, err := columnIndex(header, cols.Timestamp, TimestampColumn, legacyTimestampColumn, 0)
	if err != nil {
		return nil, err
	}
	valIdx, err := columnIndex(header, cols.Value, ValueColumn, legacyValueColumn, 1)
	if err != nil {
		return nil, err
	}

	var out []domain.RawRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+1, err)
		}
		if isBlank(row) {
			continue
		}
		out = append(out, domain.RawRecord{
			Timestamp: field(row, tsIdx),
			Value:     field(row, valIdx),
		})
	}
}

// WriteRecords writes records under a "timestamp,<valueColumn>" header.
func WriteRecords(w io.Writer, records []domain.Record, valueColumn string) error {
	if valueColumn == "" {
		valueColumn = ValueColumn
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{TimestampColumn, valueColumn}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Timestamp, formatFloat(r.Value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRawRecords writes unparsed records under the given column names,
// keeping their text verbatim.
func WriteRawRecords(w io.Writer, records []domain.RawRecord, cols Columns) error {
	if cols.Timestamp == "" {
		cols.Timestamp = TimestampColumn
	}
	if cols.Value == "" {
		cols.Value = ValueColumn
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{cols.Timestamp, cols.Value}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Timestamp, r.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCurve writes a sampled curve as "hours,<valueColumn>" rows, hours
// being measured from the fit origin.
func WriteCurve(w io.Writer, xs, ys []float64, valueColumn string) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("curve has %d x and %d y values", len(xs), len(ys))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"hours", valueColumn}); err != nil {
		return err
	}
	for i := range xs {
		if err := cw.Write([]string{formatFloat(xs[i]), formatFloat(ys[i])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func columnIndex(header []string, name, def, legacy string, position int) (int, error) {
	if name != "" {
		if i := findColumn(header, name); i >= 0 {
			return i, nil
		}
		return 0, fmt.Errorf("%w %q", ErrMissingColumn, name)
	}
	if i := findColumn(header, def); i >= 0 {
		return i, nil
	}
	if i := findColumn(header, legacy); i >= 0 {
		return i, nil
	}
	if position < len(header) {
		return position, nil
	}
	return 0, fmt.Errorf("%w %q", ErrMissingColumn, def)
}

func findColumn(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
