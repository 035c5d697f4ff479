package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// publishBatchSize bounds the messages handed to one WriteMessages call
const publishBatchSize = 500

// MessageWriter is the part of kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes computed summaries as SummaryEvents
type Producer struct {
	writer MessageWriter
	topic  string
	now    func() time.Time
	log    zerolog.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewProducerWithWriter(writer, topic, log)
}

// NewProducerWithWriter creates a producer over an existing writer
func NewProducerWithWriter(w MessageWriter, topic string, log zerolog.Logger) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		now:    time.Now,
		log:    log.With().Str("topic", topic).Logger(),
	}
}

// Write publishes one event per summary keyed by fund code, so every period
// of a fund lands on the same partition. outputDir is not used.
func (p *Producer) Write(ctx context.Context, g models.Granularity, outputDir string, summaries []models.MetricSummary) error {
	ts := p.now().UTC()

	msgs := make([]kafka.Message, 0, len(summaries))
	for _, s := range summaries {
		event := models.SummaryEvent{
			EventType:   models.EventTypeSummaryComputed,
			Granularity: g,
			Summary:     s,
			Timestamp:   ts,
		}
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(s.Code),
			Value: data,
			Headers: []kafka.Header{
				{Key: "granularity", Value: []byte(g)},
				{Key: "period", Value: []byte(s.Period.String())},
			},
		})
	}

	for start := 0; start < len(msgs); start += publishBatchSize {
		end := min(start+publishBatchSize, len(msgs))
		if err := p.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("failed to write message to kafka: %w", err)
		}
	}

	p.log.Info().Str("granularity", string(g)).Int("events", len(msgs)).Msg("published summaries")
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
