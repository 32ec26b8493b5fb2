package config

import "fmt"

// NewReadError wraps a failure to read the manifest file.
func NewReadError(path string, err error) error {
	return fmt.Errorf("read manifest %q: %w", path, err)
}

// NewParseError wraps a failure to decode the manifest file.
func NewParseError(path string, err error) error {
	return fmt.Errorf("parse manifest %q: %w", path, err)
}

// NewSeriesError wraps a validation failure of one manifest series entry.
func NewSeriesError(index int, name string, err error) error {
	if name == "" {
		return fmt.Errorf("series[%d]: %w", index, err)
	}
	return fmt.Errorf("series[%d] %q: %w", index, name, err)
}
