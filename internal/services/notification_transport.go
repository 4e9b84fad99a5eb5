package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/models"
)

// ============================================================================
// REDIS PUB/SUB FAN-OUT (multi-instance)
// ============================================================================

// RedisNotifier publishes notifications on a Redis channel. Every instance
// runs the subscriber loop and delivers what it receives to its local hub,
// so a user connected to any instance gets the event.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	hub     *NotificationHub
	logger  *logrus.Logger
}

// NewRedisNotifier creates a new RedisNotifier
func NewRedisNotifier(client *redis.Client, channel string, hub *NotificationHub, logger *logrus.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger,
	}
}

// Notify publishes n. A failed publish is logged and dropped.
func (r *RedisNotifier) Notify(ctx context.Context, n models.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to encode notification")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"kind":     n.Kind,
			"order_id": n.OrderID,
		}).Warn("Failed to publish notification")
	}
}

// Run delivers channel messages to the local hub until ctx is cancelled
func (r *RedisNotifier) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.WithField("channel", r.channel).Info("Subscribed to notification channel")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				r.logger.WithError(err).Warn("Discarding malformed notification")
				continue
			}
			r.hub.Deliver(n)
		}
	}
}

// ============================================================================
// KAFKA LIFECYCLE STREAM
// ============================================================================

// KafkaNotifier writes every notification to a Kafka topic keyed by order id,
// so events for one order stay in one partition.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewKafkaNotifier creates an asynchronous writer for topic
func NewKafkaNotifier(brokers []string, topic string, logger *logrus.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.WithError(err).WithField("count", len(messages)).Warn("Failed to write lifecycle events")
				}
			},
		},
		logger: logger,
	}
}

// Notify enqueues n on the writer
func (k *KafkaNotifier) Notify(ctx context.Context, n models.Notification) {
	value, err := json.Marshal(n)
	if err != nil {
		k.logger.WithError(err).Warn("Failed to encode lifecycle event")
		return
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(n.OrderID, 10)),
		Value: value,
		Time:  n.Timestamp,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(n.Kind)},
		},
	})
	if err != nil {
		k.logger.WithError(err).WithField("order_id", n.OrderID).Warn("Failed to enqueue lifecycle event")
	}
}

// Close flushes pending messages
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
