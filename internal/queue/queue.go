package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Queue names for the send_message job type. The main queue dead-letters
// hard-rejected messages into the DLQ; the retry queue holds delayed
// redeliveries and dead-letters them back into the main queue when their
// per-message TTL expires, so a pending retry survives a worker crash.
const (
	QueueSendMessage      = "send_message"
	QueueSendMessageRetry = "send_message_retry"
	QueueSendMessageDLQ   = "send_message_dlq"
)

// Publisher is what the orchestrator and worker need from the broker.
type Publisher interface {
	Publish(job SendJob) error
	PublishRetry(job SendJob, delay time.Duration) error
}

// Client wraps one RabbitMQ connection and channel. It is constructed by the
// process entry point and passed into the services that need it.
type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker and declares the send_message topology.
func Connect(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c := &Client{conn: conn, ch: ch}
	if err := c.declareTopology(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) declareTopology() error {
	// DLQ first, it has no arguments of its own.
	if _, err := c.ch.QueueDeclare(
		QueueSendMessageDLQ,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", QueueSendMessageDLQ, err)
	}

	// Main queue routes hard-rejected messages to the DLQ via the default
	// exchange.
	if _, err := c.ch.QueueDeclare(
		QueueSendMessage,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": QueueSendMessageDLQ,
		},
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", QueueSendMessage, err)
	}

	// Retry queue: no consumer attaches to it; expired messages dead-letter
	// back into the main queue, which is the timed re-publish.
	if _, err := c.ch.QueueDeclare(
		QueueSendMessageRetry,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": QueueSendMessage,
		},
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", QueueSendMessageRetry, err)
	}

	return nil
}

// Publish enqueues a job on the main queue.
func (c *Client) Publish(job SendJob) error {
	return c.publish(QueueSendMessage, job, "")
}

// PublishRetry enqueues a job on the retry queue with a per-message TTL; the
// broker moves it back to the main queue once the delay elapses.
func (c *Client) PublishRetry(job SendJob, delay time.Duration) error {
	expiration := fmt.Sprintf("%d", delay.Milliseconds())
	return c.publish(QueueSendMessageRetry, job, expiration)
}

func (c *Client) publish(queueName string, job SendJob, expiration string) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if expiration != "" {
		pub.Expiration = expiration
	}

	if err := c.ch.Publish("", queueName, false, false, pub); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}

// Consume starts delivering main-queue messages with the given prefetch.
// Deliveries must be acked or nacked by the caller.
func (c *Client) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.ch.Consume(
		QueueSendMessage,
		"",    // consumer tag
		false, // autoAck = false for reliability
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	return msgs, nil
}

// Close tears down the channel and connection.
func (c *Client) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

var _ Publisher = (*Client)(nil)
