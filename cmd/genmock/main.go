// Command genmock writes a synthetic roof-runoff experiment: noisy level and
// reservoir volume readings as CSV, the matching experiment manifest, and the
// same readings as a JSON-lines broker export. It is used to build the mock
// fixtures under data/mock and to exercise splitexport.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -minutes 30 -seed 1
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/adapter/brokerexport"
	"github.com/couchcryptid/runoff-etl-service/internal/adapter/csvfile"
	"github.com/couchcryptid/runoff-etl-service/internal/config"
	"github.com/couchcryptid/runoff-etl-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"
)

const (
	levelTopic  = "telhado1/nivel"
	volumeTopic = "telhado1/volume"

	// Collector geometry: radius 30 cm.
	area = 30 * 30 * math.Pi
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	minutes := flag.Int("minutes", 30, "experiment length in minutes, one reading per minute")
	seed := flag.Uint64("seed", 1, "random seed")
	date := flag.String("date", "2024-05-10", "experiment date")
	start := flag.String("start", "14:00", "first reading, H:MM")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *minutes < 2 {
		return fmt.Errorf("minutes must be at least 2, got %d", *minutes)
	}

	day, err := time.Parse("2006-01-02", *date)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	// Fixed clock so readings without a date resolve to the experiment day.
	domain.SetClock(clockwork.NewFakeClockAt(day))
	defer domain.SetClock(nil)

	parser := domain.TimeParser{}
	first, err := parser.Parse(*start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	level, volume := simulate(rng, first, *minutes)

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(*out, "nivel.csv"), level); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(*out, "volume.csv"), volume); err != nil {
		return err
	}
	if err := writeManifest(filepath.Join(*out, "experiment.yaml"), "roof1-"+*date); err != nil {
		return err
	}
	if err := writeExport(filepath.Join(*out, "export.jsonl"), first, level, volume); err != nil {
		return err
	}

	log.Printf("wrote %d level and %d volume readings to %s", len(level), len(volume), *out)
	return nil
}

// simulate produces a level that fills towards a plateau and the volume left
// in the supply reservoir. Both carry sensor noise, spurious dips and the
// occasional missing reading.
func simulate(rng *rand.Rand, first time.Time, minutes int) (level, volume []domain.RawRecord) {
	const (
		baseLevel   = 10.0
		plateau     = 8.0
		tau         = 10.0
		reservoir   = 60000.0
		dipChance   = 0.1
		missChance  = 0.03
		levelNoise  = 0.02
		volumeNoise = 5.0
	)

	for i := range minutes {
		t := first.Add(time.Duration(i) * time.Minute)
		stamp := fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())

		h := baseLevel + plateau*(1-math.Exp(-float64(i)/tau)) + rng.NormFloat64()*levelNoise
		if i > 0 && rng.Float64() < dipChance {
			h -= 0.3 + rng.Float64()*0.5
		}
		v := reservoir - area*(h-baseLevel) + rng.NormFloat64()*volumeNoise
		if i > 0 && rng.Float64() < dipChance {
			v -= 500 + rng.Float64()*500
		}

		level = append(level, domain.RawRecord{Timestamp: stamp, Value: reading(rng, h, missChance, "%.2f")})
		volume = append(volume, domain.RawRecord{Timestamp: stamp, Value: reading(rng, v, missChance, "%.1f")})
	}
	return level, volume
}

func reading(rng *rand.Rand, v, missChance float64, format string) string {
	if rng.Float64() < missChance {
		return "NA"
	}
	return fmt.Sprintf(format, v)
}

func writeCSV(path string, records []domain.RawRecord) error {
	var buf bytes.Buffer
	if err := csvfile.WriteRawRecords(&buf, records, csvfile.Columns{Timestamp: "data", Value: "body"}); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func writeManifest(path, experiment string) error {
	m := config.Manifest{
		Experiment: experiment,
		Series: []config.SeriesSpec{
			{Name: "roof1_level", Path: "nivel.csv", Kind: string(domain.KindLevel)},
			{Name: "roof1_volume", Path: "volume.csv", Kind: string(domain.KindVolume)},
		},
	}
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// writeExport writes the readings as the broker would have stored them.
func writeExport(path string, first time.Time, level, volume []domain.RawRecord) error {
	var msgs []brokerexport.Message
	for i := range level {
		t := first.Add(time.Duration(i) * time.Minute)
		for _, r := range []struct {
			topic string
			value string
		}{{levelTopic, level[i].Value}, {volumeTopic, volume[i].Value}} {
			m, err := brokerexport.NewMessage(r.topic, t, r.value)
			if err != nil {
				return err
			}
			msgs = append(msgs, m)
		}
	}

	var buf bytes.Buffer
	if err := brokerexport.WriteLines(&buf, msgs); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
