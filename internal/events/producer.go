// README: Logical event fan-out over Kafka plus in-process WebSocket push.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"lifton/internal/types"
)

// Publisher is the notification collaborator contract: informed, not
// consulted. Engines never block on delivery.
type Publisher interface {
	Publish(ctx context.Context, event string, key types.ID, payload any) error
}

// Envelope is the wire shape of every logical event.
type Envelope struct {
	Event     string    `json:"event"`
	Key       string    `json:"key"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) Publish(ctx context.Context, event string, key types.ID, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(Envelope{Event: event, Key: string(key), Payload: payload, EmittedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// Fanout tees each event to every underlying publisher. A failing sink
// does not stop the others; the first error is reported.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event string, key types.ID, payload any) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, event, key, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
