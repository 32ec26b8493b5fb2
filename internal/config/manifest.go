package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultManifestPath is used when MANIFEST_PATH is unset.
const DefaultManifestPath = "experiment.yaml"

// Manifest describes one experiment: where its sensor files live and how
// each series is treated.
type Manifest struct {
	Experiment string       `yaml:"experiment"`
	InputDir   string       `yaml:"input_dir,omitempty"`
	Fit        FitSpec      `yaml:"fit,omitempty"`
	Series     []SeriesSpec `yaml:"series"`

	// dir is the directory of the manifest file; relative input dirs resolve against it.
	dir string
}

// FitSpec overrides the configured polynomial fit. Zero fields are inherited.
type FitSpec struct {
	Degree  int `yaml:"degree,omitempty"`
	Samples int `yaml:"samples,omitempty"`
}

// SeriesSpec is one sensor file of the experiment.
type SeriesSpec struct {
	Name            string  `yaml:"name"`
	Path            string  `yaml:"path"`
	Kind            string  `yaml:"kind"`
	Direction       string  `yaml:"direction,omitempty"`
	TimestampColumn string  `yaml:"timestamp_column,omitempty"`
	ValueColumn     string  `yaml:"value_column,omitempty"`
	Fit             FitSpec `yaml:"fit,omitempty"`
}

// Entry is a validated series entry with its path resolved and its kind and
// direction parsed.
type Entry struct {
	Name            string
	Path            string
	Kind            domain.Kind
	Direction       domain.Direction
	TimestampColumn string
	ValueColumn     string
	Fit             domain.FitOverride
}

// ManifestLoader reads an experiment manifest from disk.
type ManifestLoader struct {
	path string
}

// NewManifestLoader returns a loader for path, or DefaultManifestPath when empty.
func NewManifestLoader(path string) *ManifestLoader {
	if path == "" {
		path = DefaultManifestPath
	}
	return &ManifestLoader{path: path}
}

// Load reads, decodes and validates the manifest. Unknown YAML fields are rejected.
func (l *ManifestLoader) Load() (*Manifest, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, NewReadError(l.path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	m := &Manifest{}
	if err := dec.Decode(m); err != nil {
		return nil, NewParseError(l.path, err)
	}
	m.dir = filepath.Dir(l.path)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %q: %w", l.path, err)
	}
	return m, nil
}

// Validate checks that the manifest names at least one series, that series
// names are unique and that every kind, direction and fit override is valid.
func (m *Manifest) Validate() error {
	if len(m.Series) == 0 {
		return errors.New("no series defined")
	}
	if err := validateFit(m.Fit); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	seen := make(map[string]struct{}, len(m.Series))
	dirs := make(map[string]string, len(m.Series))
	for i, s := range m.Series {
		if s.Name == "" {
			return NewSeriesError(i, "", errors.New("name is required"))
		}
		if _, dup := seen[s.Name]; dup {
			return NewSeriesError(i, s.Name, errors.New("duplicate name"))
		}
		seen[s.Name] = struct{}{}

		dir := OutputDirName(s.Name)
		if other, ok := dirs[dir]; ok {
			return NewSeriesError(i, s.Name, fmt.Errorf("output directory %q already used by %q", dir, other))
		}
		dirs[dir] = s.Name

		if s.Path == "" {
			return NewSeriesError(i, s.Name, errors.New("path is required"))
		}
		if _, err := domain.ParseKind(s.Kind); err != nil {
			return NewSeriesError(i, s.Name, err)
		}
		if s.Direction != "" {
			if _, err := domain.ParseDirection(s.Direction); err != nil {
				return NewSeriesError(i, s.Name, err)
			}
		}
		if err := validateFit(s.Fit); err != nil {
			return NewSeriesError(i, s.Name, fmt.Errorf("fit: %w", err))
		}
	}
	return nil
}

func validateFit(f FitSpec) error {
	if f.Degree < 0 {
		return fmt.Errorf("degree %d: %w", f.Degree, domain.ErrInvalidParameter)
	}
	if f.Samples < 0 {
		return fmt.Errorf("samples %d: %w", f.Samples, domain.ErrInvalidParameter)
	}
	return nil
}

// Entries returns the series in manifest order. Call Validate first; invalid
// kinds and directions fall back to raw and the kind default.
func (m *Manifest) Entries() []Entry {
	base := m.inputDir()
	out := make([]Entry, 0, len(m.Series))
	for _, s := range m.Series {
		kind, err := domain.ParseKind(s.Kind)
		if err != nil {
			kind = domain.KindRaw
		}
		dir := kind.DefaultDirection()
		if s.Direction != "" {
			if d, err := domain.ParseDirection(s.Direction); err == nil {
				dir = d
			}
		}

		path := s.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}

		out = append(out, Entry{
			Name:            s.Name,
			Path:            path,
			Kind:            kind,
			Direction:       dir,
			TimestampColumn: s.TimestampColumn,
			ValueColumn:     s.ValueColumn,
			Fit:             mergeFit(m.Fit, s.Fit),
		})
	}
	return out
}

// OutputDirName maps a series name to the single path element its outputs
// are written under.
func OutputDirName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

func (m *Manifest) inputDir() string {
	if filepath.IsAbs(m.InputDir) {
		return m.InputDir
	}
	return filepath.Join(m.dir, m.InputDir)
}

func mergeFit(experiment, series FitSpec) domain.FitOverride {
	o := domain.FitOverride{Degree: experiment.Degree, SampleCount: experiment.Samples}
	if series.Degree != 0 {
		o.Degree = series.Degree
	}
	if series.Samples != 0 {
		o.SampleCount = series.Samples
	}
	return o
}
