package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/qa-go/qaf/retry"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

func (p *Producer) SendWithRetry(ctx context.Context, strat retry.Strategy, key, value []byte) error {
	return retry.DoContext(ctx, strat, func() error {
		return p.Send(ctx, key, value)
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
