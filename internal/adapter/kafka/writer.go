package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/config"
	"github.com/couchcryptid/runoff-etl-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the loader needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes derived series to a Kafka topic, one message per output.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// SeriesMessage is the JSON value of a published output series.
type SeriesMessage struct {
	Series      string       `json:"series"`
	Stage       string       `json:"stage"`
	Kind        domain.Kind  `json:"kind"`
	ProcessedAt time.Time    `json:"processed_at"`
	Points      []PointValue `json:"points"`
}

// PointValue is one sample of a published series.
type PointValue struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// LoadBatch publishes every output of every result in a single
// WriteMessages call. Messages are keyed by series and stage so each output
// always lands on the same partition.
func (w *Writer) LoadBatch(ctx context.Context, results []domain.Result) error {
	var msgs []kafkago.Message
	for i := range results {
		for _, out := range results[i].Outputs {
			msg, err := serializeToMessage(results[i], out)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d series: %w", len(msgs), err)
	}
	w.logger.Debug("series published", "messages", len(msgs), "results", len(results))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// MessageKey is the key of the message carrying one output.
func MessageKey(series, stage string) string { return series + "/" + stage }

// serializeToMessage marshals one output series into a Kafka message.
func serializeToMessage(res domain.Result, out domain.Output) (kafkago.Message, error) {
	samples := out.Series.Samples()
	points := make([]PointValue, len(samples))
	for i, s := range samples {
		points[i] = PointValue{Timestamp: s.Timestamp, Value: s.Value}
	}

	data, err := json.Marshal(SeriesMessage{
		Series:      res.Series,
		Stage:       out.Stage,
		Kind:        res.Kind,
		ProcessedAt: res.ProcessedAt,
		Points:      points,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s: %w", MessageKey(res.Series, out.Stage), err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(res.Series, out.Stage)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "stage", Value: []byte(out.Stage)},
			{Key: "kind", Value: []byte(res.Kind)},
			{Key: "processed_at", Value: []byte(res.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
