// Package events defines the domain events emitted after a workflow commits.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	TypeSightingReported = "SightingReported"
	TypeOrderPaid        = "OrderPaid"
)

const (
	TopicSightingReported = "sway.sighting.reported"
	TopicOrderPaid        = "sway.order.paid"
)

// Topics lists every topic the projector subscribes to.
var Topics = []string{TopicSightingReported, TopicOrderPaid}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type SightingReported struct {
	SightingID int64     `json:"sighting_id"`
	SpeciesID  int64     `json:"species_id"`
	UserID     int64     `json:"user_id"`
	ObservedAt time.Time `json:"observed_at"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lon"`
}

type LineQty struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderPaid struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Lines       []LineQty       `json:"lines"`
}

// New wraps payload in a version 1 envelope with a fresh event id.
func New(eventType, producer, correlationID, traceID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "events: marshal %s", eventType)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// Decode unmarshals the payload of env into T.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, errors.Wrapf(err, "events: decode %s payload", env.EventType)
	}
	return t, nil
}

// PartitionKey keeps all events of one aggregate on one partition.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }

// Publisher delivers envelopes to a topic. Implementations must not block
// the caller on broker availability.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}

type Nop struct{}

func (Nop) Publish(context.Context, string, []byte, Envelope) error { return nil }

// Published is one recorded call to Memory.Publish.
type Published struct {
	Topic    string
	Key      []byte
	Envelope Envelope
}

// Memory records everything published to it.
type Memory struct {
	mu   sync.Mutex
	sent []Published
	Err  error
}

func (m *Memory) Publish(_ context.Context, topic string, key []byte, env Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, Published{Topic: topic, Key: key, Envelope: env})
	return nil
}

func (m *Memory) Sent() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.sent...)
}
