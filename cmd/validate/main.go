// Command validate checks the integrity of a treated experiment: every series
// of the manifest has its outputs, corrected series are monotonic in their
// scan direction, discharge matches the corrected level it was derived from,
// and the row counts agree with each series summary.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -manifest data/mock/experiment.yaml \
//	  -out out \
//	  -radius 30
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/runoff-etl-service/internal/adapter/csvfile"
	"github.com/couchcryptid/runoff-etl-service/internal/config"
	"github.com/couchcryptid/runoff-etl-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// seriesOutput is everything read back for one series.
type seriesOutput struct {
	entry   config.Entry
	summary domain.Summary
	stages  map[string][]domain.RawRecord
}

func main() {
	manifestPath := flag.String("manifest", config.DefaultManifestPath, "experiment manifest")
	outDir := flag.String("out", "out", "output directory of the run")
	area := flag.Float64("area", 0, "collector cross-section in cm²; overrides -radius")
	radius := flag.Float64("radius", 30, "collector radius in cm")
	layout := flag.String("layout", domain.DefaultTimeLayout, "timestamp layout of the output files")
	flag.Parse()

	a := *area
	if a == 0 {
		a = domain.CylinderArea(*radius)
	}

	os.Exit(run(*manifestPath, *outDir, a, domain.TimeParser{Layout: *layout}))
}

func run(manifestPath, outDir string, area float64, parser domain.TimeParser) int {
	fmt.Println("=== Runoff Output Validation ===")
	fmt.Println()

	manifest, err := config.NewManifestLoader(manifestPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	presence := &phase{name: "Outputs present"}
	var outputs []seriesOutput
	for _, e := range manifest.Entries() {
		if so, ok := loadSeries(presence, outDir, e); ok {
			outputs = append(outputs, so)
		}
	}

	phases := []*phase{
		presence,
		validateCounts(outputs),
		validateMonotonic(outputs, parser),
		validateDischarge(outputs, area, parser),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Series: %d in manifest, %d with outputs\n", len(manifest.Series), len(outputs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func expectedStages(k domain.Kind) []string {
	switch k {
	case domain.KindLevel:
		return []string{domain.StageCorrected, domain.StageDischarge}
	case domain.KindVolume:
		return []string{domain.StageCorrected}
	default:
		return nil
	}
}

func loadSeries(p *phase, outDir string, e config.Entry) (seriesOutput, bool) {
	dir := filepath.Join(outDir, config.OutputDirName(e.Name))
	data, err := os.ReadFile(filepath.Join(dir, csvfile.SummaryFile))
	if err != nil {
		p.errorf("%s: %v", e.Name, err)
		return seriesOutput{}, false
	}

	so := seriesOutput{entry: e, stages: map[string][]domain.RawRecord{}}
	if err := json.Unmarshal(data, &so.summary); err != nil {
		p.errorf("%s: summary: %v", e.Name, err)
		return seriesOutput{}, false
	}

	for _, stage := range expectedStages(e.Kind) {
		if _, ok := so.summary.Outputs[stage]; !ok {
			p.errorf("%s: summary has no %s output", e.Name, stage)
		}
	}
	for stage := range so.summary.Outputs {
		records, err := readStage(filepath.Join(dir, stage+".csv"))
		if err != nil {
			p.errorf("%s/%s: %v", e.Name, stage, err)
			continue
		}
		so.stages[stage] = records
	}
	return so, true
}

func readStage(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvfile.ReadRecords(f, csvfile.Columns{})
}

func validateCounts(outputs []seriesOutput) *phase {
	p := &phase{name: "Row counts match summaries"}
	for _, so := range outputs {
		for stage, want := range so.summary.Outputs {
			records, ok := so.stages[stage]
			if !ok {
				continue
			}
			if len(records) != want {
				p.errorf("%s/%s: %d rows, summary says %d", so.entry.Name, stage, len(records), want)
			}
		}
		if c, d := so.summary.Outputs[domain.StageCorrected], so.summary.Outputs[domain.StageDischarge]; d != 0 && d != c-1 {
			p.errorf("%s: %d discharge rows for %d corrected rows", so.entry.Name, d, c)
		}
	}
	return p
}

func validateMonotonic(outputs []seriesOutput, parser domain.TimeParser) *phase {
	p := &phase{name: "Corrected series are monotonic"}
	for _, so := range outputs {
		records, ok := so.stages[domain.StageCorrected]
		if !ok {
			continue
		}
		s, _, err := domain.Coerce(so.entry.Name, records, parser)
		if err != nil {
			p.errorf("%s: %v", so.entry.Name, err)
			continue
		}
		values := s.Values()
		for i := 1; i < len(values); i++ {
			switch {
			case so.entry.Direction == domain.Forward && values[i] < values[i-1]:
				p.errorf("%s[%d]: %g after %g", so.entry.Name, i, values[i], values[i-1])
			case so.entry.Direction == domain.Backward && i > 1 && values[i] > values[i-1]:
				p.errorf("%s[%d]: %g after %g", so.entry.Name, i, values[i], values[i-1])
			}
		}
	}
	return p
}

func validateDischarge(outputs []seriesOutput, area float64, parser domain.TimeParser) *phase {
	p := &phase{name: "Discharge matches corrected level"}
	for _, so := range outputs {
		corrected, okC := so.stages[domain.StageCorrected]
		discharge, okD := so.stages[domain.StageDischarge]
		if !okC || !okD {
			continue
		}
		level, _, err := domain.Coerce(so.entry.Name, corrected, parser)
		if err != nil {
			p.errorf("%s: corrected: %v", so.entry.Name, err)
			continue
		}
		got, _, err := domain.Coerce(so.entry.Name, discharge, parser)
		if err != nil {
			p.errorf("%s: discharge: %v", so.entry.Name, err)
			continue
		}
		want, err := domain.FlowRate(level, area)
		if err != nil {
			p.errorf("%s: recompute: %v", so.entry.Name, err)
			continue
		}
		if want.Len() != got.Len() {
			p.errorf("%s: %d discharge values, expected %d", so.entry.Name, got.Len(), want.Len())
			continue
		}
		for i := range want.Len() {
			if !floatEq(want.At(i).Value, got.At(i).Value) {
				p.errorf("%s[%d] %s: discharge %g, expected %g", so.entry.Name, i,
					strings.TrimSpace(discharge[i].Timestamp), got.At(i).Value, want.At(i).Value)
			}
		}
	}
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}
