package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ManifestPath string
	OutputDir    string
	HTTPAddr     string
	LogLevel     string
	LogFormat    string

	ShutdownTimeout time.Duration
	BatchSize       int
	LoadRetries     int

	// Experiment geometry and treatment parameters.
	AreaCM2    float64
	FitDegree  int
	FitSamples int
	TimeLayout string
	BaseDate   time.Time
	TimeZone   *time.Location

	// Optional Kafka sink for derived series. Disabled when no brokers are set.
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// KafkaEnabled reports whether derived series are also published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ProcessParams converts the treatment settings into domain parameters.
func (c *Config) ProcessParams() domain.ProcessParams {
	return domain.ProcessParams{
		Area: c.AreaCM2,
		Fit: domain.FitOptions{
			Degree:      c.FitDegree,
			SampleCount: c.FitSamples,
		},
		Parser: domain.TimeParser{
			Layout:   c.TimeLayout,
			BaseDate: c.BaseDate,
			Location: c.TimeZone,
		},
	}
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	area, err := parseArea()
	if err != nil {
		return nil, err
	}

	fitDegree, err := parsePositiveInt("FIT_DEGREE", domain.DefaultFitDegree)
	if err != nil {
		return nil, err
	}
	fitSamples, err := parsePositiveInt("FIT_SAMPLES", domain.DefaultFitSampleCount)
	if err != nil {
		return nil, err
	}
	loadRetries, err := parsePositiveInt("LOAD_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("TIME_ZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
	}

	var baseDate time.Time
	if s := os.Getenv("BASE_DATE"); s != "" {
		baseDate, err = time.ParseInLocation("2006-01-02", s, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid BASE_DATE: %w", err)
		}
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}

	cfg := &Config{
		ManifestPath:    sharedcfg.EnvOrDefault("MANIFEST_PATH", DefaultManifestPath),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,
		LoadRetries:     loadRetries,

		AreaCM2:    area,
		FitDegree:  fitDegree,
		FitSamples: fitSamples,
		TimeLayout: sharedcfg.EnvOrDefault("TIME_LAYOUT", domain.DefaultTimeLayout),
		BaseDate:   baseDate,
		TimeZone:   loc,

		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "runoff-derived-series"),
	}

	if cfg.ManifestPath == "" {
		return nil, errors.New("MANIFEST_PATH is required")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// parseArea reads the collector cross-section. CROSS_SECTION_AREA_CM2 wins
// over CYLINDER_RADIUS_CM; one of them must be set.
func parseArea() (float64, error) {
	if s := os.Getenv("CROSS_SECTION_AREA_CM2"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !isPositive(v) {
			return 0, errors.New("invalid CROSS_SECTION_AREA_CM2")
		}
		return v, nil
	}
	if s := os.Getenv("CYLINDER_RADIUS_CM"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !isPositive(v) {
			return 0, errors.New("invalid CYLINDER_RADIUS_CM")
		}
		return domain.CylinderArea(v), nil
	}
	return 0, errors.New("CROSS_SECTION_AREA_CM2 or CYLINDER_RADIUS_CM is required")
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
