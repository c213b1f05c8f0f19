// Package rabbitmq это обертка над github.com/rabbitmq/amqp091-go для
// публикации оповещений о критических сбоях.
package rabbitmq

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultHeartbeat      = 10 * time.Second
)

// ClientConfig параметры подключения к брокеру.
type ClientConfig struct {
	URL            string
	ConnectTimeout time.Duration
	Heartbeat      time.Duration
}

// Client основная структура клиента.
type Client struct {
	config ClientConfig
	conn   *amqp091.Connection
	mu     sync.RWMutex
	closed atomic.Bool
}

// NewClient создаёт и инициализирует нового клиента RabbitMQ.
// Проверяет обязательные параметры, устанавливает значения по умолчанию
// и выполняет первичное подключение к брокеру.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Heartbeat == 0 {
		cfg.Heartbeat = defaultHeartbeat
	}

	client := &Client{config: cfg}
	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("initial connect failed: %w", err)
	}
	return client, nil
}

// connect устанавливает соединение с RabbitMQ согласно настройкам клиента.
func (c *Client) connect() error {
	dialer := &net.Dialer{
		Timeout:   c.config.ConnectTimeout,
		KeepAlive: c.config.Heartbeat,
	}

	conn, err := amqp091.DialConfig(c.config.URL, amqp091.Config{
		Heartbeat: c.config.Heartbeat,
		Dial:      dialer.Dial,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// GetChannel открывает новый канал, переподключаясь при необходимости.
func (c *Client) GetChannel() (*amqp091.Channel, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		if err := c.connect(); err != nil {
			return nil, err
		}
		c.mu.RLock()
		conn = c.conn
		c.mu.RUnlock()
	}

	return conn.Channel()
}

// DeclareExchange объявляет durable exchange указанного типа.
func (c *Client) DeclareExchange(name, kind string) error {
	ch, err := c.GetChannel()
	if err != nil {
		return err
	}
	defer func(ch *amqp091.Channel) {
		_ = ch.Close()
	}(ch)

	return ch.ExchangeDeclare(name, kind, true, false, false, false, nil)
}

// Close закрывает соединение с брокером.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

// PublishWithContext публикует сообщение в exchange с заданным routing key.
func (c *Client) PublishWithContext(
	ctx context.Context,
	exchange, routingKey, contentType string,
	body []byte,
) error {
	ch, err := c.GetChannel()
	if err != nil {
		return err
	}
	defer func(ch *amqp091.Channel) {
		_ = ch.Close()
	}(ch)

	pub := amqp091.Publishing{
		ContentType: contentType,
		Body:        body,
	}
	// mandatory и immediate не используются.
	return ch.PublishWithContext(ctx, exchange, routingKey, false, false, pub)
}
