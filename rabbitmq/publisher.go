package rabbitmq

import (
	"context"

	"github.com/qa-go/qaf/retry"
)

// Publisher - обертка над клиентом для публикации сообщений в обменник.
type Publisher struct {
	client      *Client
	exchange    string
	contentType string
	strat       retry.Strategy
}

// NewPublisher конструктор Publisher.
func NewPublisher(client *Client, exchange, contentType string, strat retry.Strategy) *Publisher {
	return &Publisher{
		client:      client,
		exchange:    exchange,
		contentType: contentType,
		strat:       strat,
	}
}

// GetExchangeName возвращает имя обменника, который использует publisher.
func (p *Publisher) GetExchangeName() string {
	return p.exchange
}

// Publish отправляет сообщение в exchange с заданным routing key.
// Использует стратегию повторных попыток при ошибках.
func (p *Publisher) Publish(ctx context.Context, body []byte, routingKey string) error {
	return retry.DoContext(ctx, p.strat, func() error {
		return p.client.PublishWithContext(ctx, p.exchange, routingKey, p.contentType, body)
	})
}
