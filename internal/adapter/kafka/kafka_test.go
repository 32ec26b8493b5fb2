package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var processedAt = time.Date(2024, 5, 11, 6, 0, 0, 0, time.UTC)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	calls  int
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testResult() domain.Result {
	base := time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC)
	corrected := domain.NewSeries("roof1_level", []domain.Sample{
		{Timestamp: base, Value: 10},
		{Timestamp: base.Add(time.Minute), Value: 11},
	})
	discharge := domain.NewSeries("roof1_level_discharge", []domain.Sample{
		{Timestamp: base.Add(time.Minute), Value: 2826},
	})
	return domain.Result{
		Series: "roof1_level",
		Kind:   domain.KindLevel,
		Outputs: []domain.Output{
			{Stage: domain.StageCorrected, Series: corrected},
			{Stage: domain.StageDischarge, Series: discharge},
		},
		ProcessedAt: processedAt,
	}
}

func TestSerializeToMessage(t *testing.T) {
	res := testResult()

	msg, err := serializeToMessage(res, res.Outputs[1])
	require.NoError(t, err)

	assert.Equal(t, []byte("roof1_level/discharge"), msg.Key)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "stage", msg.Headers[0].Key)
	assert.Equal(t, []byte("discharge"), msg.Headers[0].Value)
	assert.Equal(t, "kind", msg.Headers[1].Key)
	assert.Equal(t, []byte("level"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(processedAt.Format(time.RFC3339)), msg.Headers[2].Value)

	var payload SeriesMessage
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "roof1_level", payload.Series)
	assert.Equal(t, "discharge", payload.Stage)
	require.Len(t, payload.Points, 1)
	assert.InDelta(t, 2826.0, payload.Points[0].Value, 1e-12)
}

func TestSerializeToMessage_NonFiniteValue(t *testing.T) {
	res := testResult()
	res.Outputs[0].Series = domain.NewSeries("bad", []domain.Sample{{Timestamp: processedAt, Value: math.NaN()}})

	_, err := serializeToMessage(res, res.Outputs[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roof1_level/corrected")
}

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	second := testResult()
	second.Series = "roof2_level"

	require.NoError(t, w.LoadBatch(context.Background(), []domain.Result{testResult(), second}))
	assert.Equal(t, 1, fw.calls)
	require.Len(t, fw.msgs, 4)
	assert.Equal(t, "roof2_level/corrected", string(fw.msgs[2].Key))

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_LoadBatchEmpty(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.LoadBatch(context.Background(), nil))
	require.NoError(t, w.LoadBatch(context.Background(), []domain.Result{{Series: "failed-fits-only"}}))
	assert.Zero(t, fw.calls)
}

func TestWriter_LoadBatchError(t *testing.T) {
	brokerDown := errors.New("broker unavailable")
	fw := &fakeWriter{err: brokerDown}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.LoadBatch(context.Background(), []domain.Result{testResult()})
	require.ErrorIs(t, err, brokerDown)
}
