package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/swaymx/sway-api/internal/events"
	"github.com/swaymx/sway-api/internal/redisx"
)

// Projector folds domain events into the counters under redisx.KeyStats.
// Each event id is applied at most once per Name within DedupTTL.
type Projector struct {
	Redis    redis.Cmdable
	Log      *slog.Logger
	Name     string
	DedupTTL time.Duration
}

func NewProjector(rdb redis.Cmdable, log *slog.Logger, name string) *Projector {
	return &Projector{Redis: rdb, Log: log, Name: name, DedupTTL: redisx.TTLDedup}
}

// Handle is the kafka.Handler for every topic in events.Topics. Malformed
// messages are logged and committed so they cannot block the partition.
func (p *Projector) Handle(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		p.Log.Warn("dropping undecodable message", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}
	err := p.Apply(ctx, env)
	if errors.Is(err, errMalformed) {
		p.Log.Warn("dropping malformed event", "event_id", env.EventID, "event_type", env.EventType, "err", err)
		return nil
	}
	return err
}

var errMalformed = errors.New("malformed event")

// Apply updates the counters for one envelope. Unknown event types are ignored.
func (p *Projector) Apply(ctx context.Context, env events.Envelope) error {
	if env.EventType != events.TypeSightingReported && env.EventType != events.TypeOrderPaid {
		return nil
	}
	if env.EventID == "" {
		return errors.Wrap(errMalformed, "missing event id")
	}

	// redeliveries are skipped before the payload is decoded
	key := fmt.Sprintf(redisx.KeyDedup, p.Name, env.EventID)
	seen, err := redisx.Exists(ctx, p.Redis, key)
	if err != nil {
		return err
	}
	if seen {
		p.Log.Debug("duplicate event skipped", "event_id", env.EventID)
		return nil
	}

	var incr map[string]int64
	switch env.EventType {
	case events.TypeSightingReported:
		incr = map[string]int64{FieldSightings: 1}
	case events.TypeOrderPaid:
		paid, err := events.Decode[events.OrderPaid](env)
		if err != nil {
			return errors.Wrap(errMalformed, err.Error())
		}
		var units int64
		for _, l := range paid.Lines {
			units += int64(l.Quantity)
		}
		incr = map[string]int64{
			FieldOrdersPaid:   1,
			FieldUnitsSold:    units,
			FieldRevenueCents: paid.Total.Shift(2).Round(0).IntPart(),
		}
	}

	fresh, err := redisx.Claim(ctx, p.Redis, key, p.DedupTTL)
	if err != nil {
		return err
	}
	if !fresh {
		p.Log.Debug("duplicate event skipped", "event_id", env.EventID)
		return nil
	}

	_, err = p.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for field, n := range incr {
			pipe.HIncrBy(ctx, redisx.KeyStats, field, n)
		}
		return nil
	})
	if err != nil {
		// release the claim so the redelivered message is applied
		_ = p.Redis.Del(ctx, key).Err()
		return errors.Wrap(err, "stats: apply counters")
	}
	p.Log.Debug("event projected", "event_id", env.EventID, "event_type", env.EventType)
	return nil
}
