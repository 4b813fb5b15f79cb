package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/config"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	maxRelayBatch = 64
	writeTimeout  = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer relays live fuel level events to a Kafka topic.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBatch serializes events into envelopes and writes them in a single
// WriteMessages call.
func (w *Writer) PublishBatch(ctx context.Context, events []domain.FuelLevelEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

// Relay forwards events from a distributor subscription until the channel
// closes or the context is cancelled. Events already queued are drained into
// one batch. Write failures are logged and the batch is dropped.
func (w *Writer) Relay(ctx context.Context, events <-chan domain.FuelLevelEvent) {
	batch := make([]domain.FuelLevelEvent, 0, maxRelayBatch)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			batch = append(batch[:0], e)
		drain:
			for len(batch) < maxRelayBatch {
				select {
				case e, ok := <-events:
					if !ok {
						break drain
					}
					batch = append(batch, e)
				default:
					break drain
				}
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := w.PublishBatch(writeCtx, batch)
			cancel()
			if err != nil {
				w.logger.Error("kafka relay write failed", "events", len(batch), "error", err)
				continue
			}
			w.logger.Debug("kafka relay wrote events", "events", len(batch))
		}
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an event envelope into a Kafka message keyed by
// tank so a tank's updates stay ordered within a partition.
func serializeToMessage(event domain.FuelLevelEvent) (kafkago.Message, error) {
	data, err := domain.MarshalEnvelope(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize fuel level event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.TankID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(domain.EventTypeFuelLevelUpdate)},
			{Key: "status", Value: []byte(event.Status)},
			{Key: "reading_at", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
