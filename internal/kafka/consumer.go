package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// reader is the part of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryMin = 200 * time.Millisecond
	defaultRetryMax = 5 * time.Second
)

type Consumer struct {
	r       reader
	workers int
	log     *zap.Logger

	// backoff between attempts of a failing message, doubling up to RetryMax
	RetryMin time.Duration
	RetryMax time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if log == nil {
		log = zap.NewNop()
	}
	return newConsumer(r, workers, log.With(zap.String("topic", topic), zap.String("group", group)))
}

func newConsumer(r reader, workers int, log *zap.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, workers: workers, log: log, RetryMin: defaultRetryMin, RetryMax: defaultRetryMax}
}

// Start blocks until ctx is cancelled or the reader fails.
//
// Every partition is owned by one worker, so its messages are handled and
// committed in offset order. A failing message is retried with backoff and
// blocks its partition; nothing after it is committed until it succeeds.
// Workers are drained before the reader is closed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				// shutdown: sisa pesan dibiarkan uncommitted, akan di-fetch ulang
				if ctx.Err() != nil {
					continue
				}
				if !c.handle(ctx, id, h, m) {
					continue
				}
				// commit on success
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Error("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(i, jobs[i])
	}

	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
		if err := c.r.Close(); err != nil {
			c.log.Warn("kafka reader close", zap.Error(err))
		}
	}()

	// dispatcher loop
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle runs h until it succeeds. It reports false only when ctx ended first.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	wait := c.RetryMin
	if wait <= 0 {
		wait = defaultRetryMin
	}
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Warn("handler failed, retrying",
			zap.Int("worker", worker),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait *= 2; wait > c.RetryMax {
			wait = c.RetryMax
		}
	}
}
