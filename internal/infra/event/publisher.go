package event

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter creates a writer for one topic; only the leader ack is waited for.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// 注文イベントをトピックごとのwriterで送る。keyは注文IDで、同じ注文は同じパーティションに入る
type KafkaPublisher struct {
	writers map[string]messageWriter
}

func NewKafkaPublisher(brokers []string, topics ...string) *KafkaPublisher {
	writers := make(map[string]messageWriter, len(topics))
	for _, t := range topics {
		writers[t] = NewKafkaWriter(brokers, t)
	}
	return &KafkaPublisher{writers: writers}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, orderID int64, payload any) error {
	w, ok := p.writers[topic]
	if !ok {
		return errors.Errorf("unknown topic %q", topic)
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(orderID, 10)),
		Value: value,
		Time:  time.Now(),
	})
	return errors.Wrapf(err, "publish %s", topic)
}

func (p *KafkaPublisher) Close() error {
	var first error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Kafka未設定のとき
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, int64, any) error { return nil }
