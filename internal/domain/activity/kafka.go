package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

const (
	kafkaQueueSize    = 1024
	kafkaBatchSize    = 100
	kafkaBatchTimeout = 50 * time.Millisecond
	kafkaWriteTimeout = 10 * time.Second
)

var (
	ErrQueueFull      = errors.New("activity publish queue is full")
	ErrRecorderClosed = errors.New("activity recorder is closed")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaRecorder publishes each event as one JSON message keyed by employee,
// so a consumer sees one employee's activity in order. Record only enqueues;
// a background worker drains the queue in batches.
type KafkaRecorder struct {
	topic  string
	writer messageWriter
	queue  chan kafkago.Message
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewKafkaRecorder(brokers []string, topic string) *KafkaRecorder {
	return newKafkaRecorder(topic, &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              kafkaBatchSize,
		BatchTimeout:           kafkaBatchTimeout,
	}, kafkaQueueSize)
}

func newKafkaRecorder(topic string, writer messageWriter, queueSize int) *KafkaRecorder {
	r := &KafkaRecorder{
		topic:  topic,
		writer: writer,
		queue:  make(chan kafkago.Message, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record never waits for the broker. A full queue drops the event and
// reports ErrQueueFull.
func (r *KafkaRecorder) Record(_ context.Context, evt Event) error {
	msg, err := r.message(evt)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *KafkaRecorder) message(evt Event) (kafkago.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("marshal activity event: %w", err)
	}
	key := evt.EmployeeID
	if key == "" {
		key = evt.EntityID
	}
	return kafkago.Message{
		Topic: r.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "action", Value: []byte(evt.Action)},
			{Key: "entity_type", Value: []byte(evt.EntityType)},
		},
	}, nil
}

func (r *KafkaRecorder) run() {
	defer close(r.done)
	batch := make([]kafkago.Message, 0, kafkaBatchSize)
	for msg := range r.queue {
		batch = append(batch[:0], msg)
	fill:
		for len(batch) < kafkaBatchSize {
			select {
			case next, ok := <-r.queue:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		r.publish(batch)
	}
}

func (r *KafkaRecorder) publish(batch []kafkago.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
	defer cancel()
	if err := r.writer.WriteMessages(ctx, batch...); err != nil {
		slog.Warn("publish activity events failed", "topic", r.topic, "count", len(batch), "error", err)
	}
}

// Close stops accepting events, flushes what is queued and closes the writer.
func (r *KafkaRecorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.writer.Close()
}
