package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

var errBadJob = errors.New("malformed summary job")

const defaultJobTimeout = 2 * time.Minute

// Handler processes one job. A returned error dead-letters the delivery.
type Handler func(ctx context.Context, job SummaryJob) error

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
	jobTimeout  time.Duration
	log         *log.Logger
}

func NewConsumer(url, queue string, concurrency int, logger *log.Logger) (*Consumer, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	// strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, concurrency: concurrency, jobTimeout: defaultJobTimeout, log: logger}, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run dispatches deliveries to a pool of workers until ctx is cancelled or
// the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.log.Info("worker started", "queue", c.queue, "concurrency", c.concurrency)

	jobs := make(chan amqp.Delivery, c.concurrency*2)
	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, handle)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()

	return c.dispatch(ctx, msgs, jobs)
}

func (c *Consumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery, jobs chan<- amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Info("worker shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			select {
			case jobs <- d:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				c.log.Info("worker shutting down")
				return nil
			}
		}
	}
}

// process runs one delivery. Deliveries not yet started at shutdown go back
// to the queue; a started job runs to completion or to its own timeout.
func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, handle Handler) {
	if ctx.Err() != nil {
		_ = d.Nack(false, true)
		return
	}

	job, err := decodeJob(d.Body)
	if err != nil {
		c.log.Warn("bad message", "worker", workerID, "err", err)
		_ = d.Nack(false, false)
		return
	}

	timeout := c.jobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	if err := handle(jctx, job); err != nil {
		c.log.Error("job failed", "worker", workerID, "session_id", job.SessionID,
			"audience", job.Audience, "cost", time.Since(start), "err", err)
		_ = d.Nack(false, false)
		return
	}
	if err := d.Ack(false); err != nil {
		c.log.Warn("ack failed", "worker", workerID, "session_id", job.SessionID, "err", err)
	}
	if cost := time.Since(start); cost > 2*time.Second {
		c.log.Info("job_timing", "session_id", job.SessionID, "audience", job.Audience, "total", cost)
	}
}

func decodeJob(body []byte) (SummaryJob, error) {
	var job SummaryJob
	if err := json.Unmarshal(body, &job); err != nil {
		return SummaryJob{}, fmt.Errorf("%w: %v", errBadJob, err)
	}
	if job.SessionID == "" {
		return SummaryJob{}, fmt.Errorf("%w: missing session_id", errBadJob)
	}
	aud, ok := transcript.ParseAudience(string(job.Audience))
	if !ok {
		return SummaryJob{}, fmt.Errorf("%w: audience %q", errBadJob, job.Audience)
	}
	job.Audience = aud
	return job, nil
}
