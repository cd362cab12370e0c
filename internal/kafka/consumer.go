package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit explicitly after the handler succeeds
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log}
}

// Start fetches messages and fans them out to the worker pool until ctx ends.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	errs := make(chan error, c.workers)

	for i := 0; i < c.workers; i++ {
		go func() {
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					c.log.Warn("handler failed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)
					report(errs, err)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					report(errs, err)
				}
			}
		}()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			close(jobs)
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}

		// drain without blocking so a slow handler cannot stall the reader
		select {
		case e := <-errs:
			c.log.Error("worker error", "err", e)
			time.Sleep(200 * time.Millisecond)
		default:
		}
	}
}

// report never blocks a worker; the fetch loop only samples errors for backoff.
func report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}
