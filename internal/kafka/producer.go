package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/swaymx/sway-api/internal/events"
)

var (
	// ErrBufferFull is returned when the producer cannot accept another message.
	ErrBufferFull = errors.New("kafka: producer buffer full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("kafka: producer closed")
)

// Producer buffers messages and writes them from a single goroutine, so
// Publish never waits on the broker. Each message carries its own topic.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *slog.Logger

	mu     sync.RWMutex // guards closed and sends on inbox
	closed bool
}

func NewProducer(brokers []string, buf int, log *slog.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

// drain flushes what is already buffered, then closes the writer.
func (p *Producer) drain() {
	for {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				_ = p.w.Close()
				return
			}
			p.write(m)
		default:
			_ = p.w.Close()
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Error("kafka write failed", "topic", m.Topic, "key", string(m.Key), "err", err)
	}
}

// Publish implements events.Publisher.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, env events.Envelope) error {
	m, err := Message(topic, key, env)
	if err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// Message encodes env with the event type and version as headers.
func Message(topic string, key []byte, env events.Envelope) (kafka.Message, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "kafka: marshal envelope")
	}
	return kafka.Message{
		Topic: topic,
		Key:   key,
		Value: b,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}, nil
}

// Close stops accepting messages; the writer goroutine flushes and exits.
// Later calls are no-ops.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

func (p *Producer) WaitClosed() { <-p.closeCh }
