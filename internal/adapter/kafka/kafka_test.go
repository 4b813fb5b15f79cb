package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	writes [][]kafkago.Message
	err    error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, msgs)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func (f *fakeWriter) messages() []kafkago.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []kafkago.Message
	for _, w := range f.writes {
		out = append(out, w...)
	}
	return out
}

func sampleEvent(tankID string, pct float64) domain.FuelLevelEvent {
	return domain.FuelLevelEvent{
		TankID:              tankID,
		TankName:            "Main Depot",
		FuelLevelPercentage: pct,
		Timestamp:           time.Date(2025, 4, 26, 15, 10, 0, 0, time.UTC),
		Status:              domain.Classify(pct),
	}
}

func TestSerializeToMessage(t *testing.T) {
	event := sampleEvent("T1", 8.5)

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("T1"), msg.Key)
	parsed, err := domain.UnmarshalEnvelope(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event, parsed)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("fuel_level_update"), msg.Headers[0].Value)
	assert.Equal(t, "status", msg.Headers[1].Key)
	assert.Equal(t, []byte("critical"), msg.Headers[1].Value)
	assert.Equal(t, []byte("2025-04-26T15:10:00Z"), msg.Headers[2].Value)
}

func TestWriter_PublishBatch_Empty(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.Default()}

	require.NoError(t, w.PublishBatch(context.Background(), nil))
	assert.Empty(t, fw.writes)
}

func TestWriter_Relay(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.Default()}

	events := make(chan domain.FuelLevelEvent, 8)
	events <- sampleEvent("T1", 50)
	events <- sampleEvent("T2", 30)
	events <- sampleEvent("T3", 97)
	close(events)

	w.Relay(context.Background(), events)

	msgs := fw.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []byte("T1"), msgs[0].Key)
	assert.Equal(t, []byte("T3"), msgs[2].Key)
}

func TestWriter_Relay_WriteErrorContinues(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker unavailable")}
	w := &Writer{writer: fw, logger: slog.Default()}

	events := make(chan domain.FuelLevelEvent, 1)
	events <- sampleEvent("T1", 50)
	close(events)

	w.Relay(context.Background(), events)
	assert.Empty(t, fw.messages())
}

func TestWriter_Relay_StopsOnCancel(t *testing.T) {
	w := &Writer{writer: &fakeWriter{}, logger: slog.Default()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Relay(ctx, make(chan domain.FuelLevelEvent))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
