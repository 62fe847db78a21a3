package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-data-blobtag/internal/config"
	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Writer produces tagged-blob events to a Kafka topic.
// It implements pipeline.EventPublisher.
type Writer struct {
	writer    *kafkago.Writer
	batchSize int
	logger    *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger}
}

// Publish writes events in batches of the configured size, keyed
// set/timestep/blobid.
func (w *Writer) Publish(ctx context.Context, events []domain.TaggedBlob) error {
	size := w.batchSize
	if size <= 0 {
		size = len(events)
	}
	for start := 0; start < len(events); start += size {
		end := min(start+size, len(events))
		if err := w.LoadBatch(ctx, events[start:end]); err != nil {
			return err
		}
	}
	if len(events) > 0 {
		w.logger.Debug("published tagged blobs", "count", len(events), "topic", w.writer.Topic)
	}
	return nil
}

// LoadBatch serializes and publishes events in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.TaggedBlob) error {
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

func (w *Writer) Close() error {
	return w.writer.Close()
}

// messageKey identifies a blob uniquely within a job: set/timestep/blobid.
func messageKey(ev domain.TaggedBlob) []byte {
	return []byte(ev.Set + "/" + strconv.FormatInt(ev.Time.Unix(), 10) + "/" + strconv.FormatInt(int64(ev.BlobID), 10))
}

// serializeToMessage marshals a TaggedBlob into a Kafka message.
func serializeToMessage(ev domain.TaggedBlob) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize tagged blob: %w", err)
	}
	return kafkago.Message{
		Key:   messageKey(ev),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "label", Value: []byte(ev.Label)},
			{Key: "tagged_at", Value: []byte(ev.TaggedAt.Format(time.RFC3339))},
		},
	}, nil
}
