package report

import (
	"context"

	"github.com/qa-go/qaf/kafka"
	"github.com/qa-go/qaf/rabbitmq"
	"github.com/qa-go/qaf/redis"
	"github.com/qa-go/qaf/retry"
)

// DefaultDefectKey is the Redis list holding the running defect log.
const DefaultDefectKey = "qaf:defects"

// DefectLogSink appends serialized records to the Redis defect log list.
// Registered for Major severity it implements the running defect log of
// the ContinueWithLogging decision.
type DefectLogSink struct {
	client *redis.Client
	key    string
	strat  retry.Strategy
}

// NewDefectLogSink creates a defect log sink writing to key. An empty key
// selects DefaultDefectKey.
func NewDefectLogSink(client *redis.Client, key string, strat retry.Strategy) *DefectLogSink {
	if key == "" {
		key = DefaultDefectKey
	}
	return &DefectLogSink{client: client, key: key, strat: strat}
}

// Emit appends the record to the defect log.
func (s *DefectLogSink) Emit(ctx context.Context, rec FailureRecord) error {
	payload, err := rec.JSON()
	if err != nil {
		return err
	}
	return s.client.AppendDefectWithRetry(ctx, s.strat, s.key, payload)
}

// StreamSink publishes every record to a Kafka topic keyed by test case id,
// feeding downstream failure analytics.
type StreamSink struct {
	producer *kafka.Producer
	strat    retry.Strategy
}

// NewStreamSink creates a stream sink on top of producer.
func NewStreamSink(producer *kafka.Producer, strat retry.Strategy) *StreamSink {
	return &StreamSink{producer: producer, strat: strat}
}

// Emit publishes the record to the stream.
func (s *StreamSink) Emit(ctx context.Context, rec FailureRecord) error {
	payload, err := rec.JSON()
	if err != nil {
		return err
	}
	return s.producer.SendWithRetry(ctx, s.strat, []byte(rec.Context.TestCaseID()), payload)
}

// AlertSink publishes records to a RabbitMQ exchange. Registered for
// Critical severity it pages whoever owns the suite.
type AlertSink struct {
	pub        *rabbitmq.Publisher
	routingKey string
}

// NewAlertSink creates an alert sink publishing with routingKey.
func NewAlertSink(pub *rabbitmq.Publisher, routingKey string) *AlertSink {
	return &AlertSink{pub: pub, routingKey: routingKey}
}

// Emit publishes the record as an alert.
func (s *AlertSink) Emit(ctx context.Context, rec FailureRecord) error {
	payload, err := rec.JSON()
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, payload, s.routingKey)
}
